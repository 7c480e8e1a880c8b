// Package xrpl talks to an XRP Ledger (or Xahau) node over its websocket
// JSON-RPC API. It covers exactly what content anchoring needs: signing-key
// handling, anchor payment construction and serialization, and a
// session abstraction for submit and account-state queries.
//
// A Session is one logical connection with a strict lifecycle: dial,
// operate, close. Sessions are not safe for concurrent use and are never
// shared across requests; callers that want connection reuse go through
// Pool, which preserves the same Conn contract.
package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Sentinel errors separating transport failures by phase. A ledger-reported
// failing engine_result is not an error; it comes back inside SubmitResult.
var (
	ErrConnection = errors.New("xrpl: cannot connect to ledger node")
	ErrSubmission = errors.New("xrpl: transaction submission transport failure")
	ErrQuery      = errors.New("xrpl: state query transport failure")
	ErrClosed     = errors.New("xrpl: session closed")
)

// rippleEpochOffset converts ledger timestamps (seconds since 2000-01-01
// UTC) to Unix time.
const rippleEpochOffset = 946684800

// RippleTime converts a ledger timestamp to UTC wall-clock time.
func RippleTime(secs uint32) time.Time {
	return time.Unix(int64(secs)+rippleEpochOffset, 0).UTC()
}

// Config holds the connection parameters for a ledger node.
type Config struct {
	// Endpoint is the websocket URL of the node, e.g. "wss://xahau-test.net/".
	Endpoint string
	// ConnectTimeout bounds the websocket handshake.
	ConnectTimeout time.Duration
	// OpTimeout bounds each request/response round trip.
	OpTimeout time.Duration
	// DialRetries is the number of reconnect attempts after the first
	// failed handshake. Zero disables retrying.
	DialRetries uint64
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = 15 * time.Second
	}
	return c
}

// SubmitResult is the node's provisional verdict on a submitted
// transaction. A failing Code is a normal outcome for the caller to
// inspect, not a transport error; finality is decided by the network.
type SubmitResult struct {
	// Code is the engine result, e.g. "tesSUCCESS" or "temBAD_AMOUNT".
	Code string
	// Message is the human-readable engine result message.
	Message string
	// TxHash is the identifying hash the transaction was queued under.
	TxHash string
}

// MemoFields is a memo attached to a ledger object, fields hex-encoded
// uppercase as the node renders them.
type MemoFields struct {
	MemoType   string `json:"MemoType"`
	MemoData   string `json:"MemoData"`
	MemoFormat string `json:"MemoFormat,omitempty"`
}

// MemoWrapper mirrors the nesting the ledger uses for memo arrays.
type MemoWrapper struct {
	Memo MemoFields `json:"Memo"`
}

// StateObject is a ledger-resident object owned by an account, as returned
// by an account_objects query.
type StateObject struct {
	LedgerEntryType string        `json:"LedgerEntryType"`
	Memos           []MemoWrapper `json:"Memos,omitempty"`
	PreviousTxnID   string        `json:"PreviousTxnID,omitempty"`
	// Date is seconds since the ripple epoch; present on objects that
	// record a timestamp.
	Date uint32 `json:"date,omitempty"`
}

// AccountInfo is the subset of account_info consumed for sequence autofill.
type AccountInfo struct {
	Sequence uint32
	Balance  string
}

// ServerInfo is the subset of server_info consumed by health probes.
type ServerInfo struct {
	BuildVersion   string
	ServerState    string
	ValidatedIndex uint64
}

// Conn is a live, connected ledger session. Implementations are not safe
// for concurrent use; each logical request operates on its own Conn and
// must Close it on every exit path.
type Conn interface {
	Submit(ctx context.Context, txBlob string) (*SubmitResult, error)
	AccountInfo(ctx context.Context, account string) (*AccountInfo, error)
	AccountObjects(ctx context.Context, account, objType string, limit int) ([]StateObject, error)
	ServerInfo(ctx context.Context) (*ServerInfo, error)
	Close() error
}

// Dialer opens ledger sessions. NodeDialer dials a fresh websocket per
// call; Pool reuses idle ones behind the same interface.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// NodeDialer dials one websocket session per call.
type NodeDialer struct {
	cfg    Config
	logger *zap.Logger
}

// NewNodeDialer creates a Dialer for the node in cfg.
func NewNodeDialer(cfg Config, logger *zap.Logger) *NodeDialer {
	return &NodeDialer{cfg: cfg.withDefaults(), logger: logger}
}

// Dial connects to the node, retrying the handshake with capped
// exponential backoff and jitter.
func (d *NodeDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.ConnectTimeout}

	backoff, err := retry.NewExponential(250 * time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	backoff = retry.WithCappedDuration(5*time.Second, backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(d.cfg.DialRetries, backoff)

	var conn *websocket.Conn
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		conn, _, err = dialer.DialContext(ctx, d.cfg.Endpoint, nil)
		if err != nil {
			d.logger.Warn("ledger node handshake failed, will retry",
				zap.String("endpoint", d.cfg.Endpoint),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, d.cfg.Endpoint, err)
	}

	d.logger.Debug("ledger session connected", zap.String("endpoint", d.cfg.Endpoint))
	return &Session{conn: conn, cfg: d.cfg, logger: d.logger}, nil
}

// Session is a single websocket session against a ledger node.
type Session struct {
	conn   *websocket.Conn
	cfg    Config
	logger *zap.Logger
	nextID uint64

	mu     sync.Mutex
	closed bool
}

// request/response envelopes of the websocket API.
type wsRequest map[string]any

type wsResponse struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	ErrorCode    string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// call performs one request/response round trip. Both directions are
// bounded by OpTimeout (or the context deadline, whichever is sooner).
func (s *Session) call(ctx context.Context, req wsRequest, out any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	id := atomic.AddUint64(&s.nextID, 1)
	req["id"] = id

	deadline := time.Now().Add(s.cfg.OpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return err
	}

	// Read until our id comes back; the node may interleave stream
	// messages that carry no id.
	for {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		var resp wsResponse
		if err := s.conn.ReadJSON(&resp); err != nil {
			return err
		}
		if resp.Type != "" && resp.Type != "response" {
			continue
		}
		// Request ids start at 1, so a zero id means the frame carried none.
		if resp.ID != 0 && resp.ID != id {
			continue
		}

		if resp.Status != "success" {
			return fmt.Errorf("node rejected %q request: %s (%s)",
				req["command"], resp.ErrorCode, resp.ErrorMessage)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decode %q result: %w", req["command"], err)
			}
		}
		return nil
	}
}

// Submit sends a signed transaction blob for inclusion. The returned code
// is the node's provisional engine result; only transport failures are
// errors.
func (s *Session) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	var result struct {
		EngineResult        string `json:"engine_result"`
		EngineResultMessage string `json:"engine_result_message"`
		TxJSON              struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}

	err := s.call(ctx, wsRequest{"command": "submit", "tx_blob": txBlob}, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	return &SubmitResult{
		Code:    result.EngineResult,
		Message: result.EngineResultMessage,
		TxHash:  result.TxJSON.Hash,
	}, nil
}

// AccountInfo returns the account's current sequence number and balance.
func (s *Session) AccountInfo(ctx context.Context, account string) (*AccountInfo, error) {
	var result struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
			Balance  string `json:"Balance"`
		} `json:"account_data"`
	}

	err := s.call(ctx, wsRequest{
		"command":      "account_info",
		"account":      account,
		"ledger_index": "current",
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return &AccountInfo{
		Sequence: result.AccountData.Sequence,
		Balance:  result.AccountData.Balance,
	}, nil
}

// AccountObjects returns up to limit ledger objects of objType owned by
// account, read from the latest validated ledger. Only the first page is
// fetched; pagination is out of contract.
func (s *Session) AccountObjects(ctx context.Context, account, objType string, limit int) ([]StateObject, error) {
	var result struct {
		AccountObjects []StateObject `json:"account_objects"`
	}

	err := s.call(ctx, wsRequest{
		"command":      "account_objects",
		"account":      account,
		"type":         objType,
		"ledger_index": "validated",
		"limit":        limit,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return result.AccountObjects, nil
}

// ServerInfo reports the node's build and sync state, used by health probes.
func (s *Session) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var result struct {
		Info struct {
			BuildVersion    string `json:"build_version"`
			ServerState     string `json:"server_state"`
			ValidatedLedger struct {
				Seq uint64 `json:"seq"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}

	err := s.call(ctx, wsRequest{"command": "server_info"}, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return &ServerInfo{
		BuildVersion:   result.Info.BuildVersion,
		ServerState:    result.Info.ServerState,
		ValidatedIndex: result.Info.ValidatedLedger.Seq,
	}, nil
}

// Close releases the connection. It is idempotent and safe to defer on
// every path out of an operation.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// Best effort polite close; the node drops the socket either way.
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}
