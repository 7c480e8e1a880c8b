package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeNode is a scripted websocket ledger node.
type fakeNode struct {
	t       *testing.T
	srv     *httptest.Server
	handler func(req map[string]any) map[string]any

	mu       sync.Mutex
	requests []map[string]any
}

func newFakeNode(t *testing.T, handler func(req map[string]any) map[string]any) *fakeNode {
	n := &fakeNode{t: t, handler: handler}
	upgrader := websocket.Upgrader{}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			n.mu.Lock()
			n.requests = append(n.requests, req)
			n.mu.Unlock()

			resp := n.handler(req)
			resp["id"] = req["id"]
			resp["type"] = "response"
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *fakeNode) endpoint() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http")
}

func (n *fakeNode) lastRequest() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return nil
	}
	return n.requests[len(n.requests)-1]
}

func dialFake(t *testing.T, n *fakeNode) Conn {
	d := NewNodeDialer(Config{
		Endpoint:       n.endpoint(),
		ConnectTimeout: 2 * time.Second,
		OpTimeout:      2 * time.Second,
	}, zap.NewNop())
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSubmit_mapsEngineResult(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		require.Equal(t, "submit", req["command"])
		require.NotEmpty(t, req["tx_blob"])
		return map[string]any{
			"status": "success",
			"result": map[string]any{
				"engine_result":         "tesSUCCESS",
				"engine_result_message": "The transaction was applied.",
				"tx_json":               map[string]any{"hash": "ABC123"},
			},
		}
	})

	conn := dialFake(t, node)
	res, err := conn.Submit(context.Background(), "DEADBEEF")
	require.NoError(t, err)

	assert.Equal(t, "tesSUCCESS", res.Code)
	assert.Equal(t, "The transaction was applied.", res.Message)
	assert.Equal(t, "ABC123", res.TxHash)
}

func TestSubmit_ledgerRejectionIsNotAnError(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return map[string]any{
			"status": "success",
			"result": map[string]any{
				"engine_result":         "temBAD_AMOUNT",
				"engine_result_message": "Malformed amount.",
			},
		}
	})

	conn := dialFake(t, node)
	res, err := conn.Submit(context.Background(), "DEADBEEF")
	require.NoError(t, err, "a failing engine result is a normal outcome")
	assert.Equal(t, "temBAD_AMOUNT", res.Code)
}

func TestSubmit_apiErrorIsSubmissionError(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return map[string]any{
			"status":        "error",
			"error":         "invalidTransaction",
			"error_message": "fails local checks",
		}
	})

	conn := dialFake(t, node)
	_, err := conn.Submit(context.Background(), "DEADBEEF")
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestAccountObjects_queryShape(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return map[string]any{
			"status": "success",
			"result": map[string]any{
				"account_objects": []map[string]any{
					{
						"LedgerEntryType": "HookState",
						"Memos": []map[string]any{
							{"Memo": map[string]any{"MemoType": "48617368", "MemoData": "AABB"}},
						},
						"date": 745000000,
					},
				},
			},
		}
	})

	conn := dialFake(t, node)
	objects, err := conn.AccountObjects(context.Background(), genesisAddress, "state", 100)
	require.NoError(t, err)

	req := node.lastRequest()
	assert.Equal(t, "account_objects", req["command"])
	assert.Equal(t, genesisAddress, req["account"])
	assert.Equal(t, "state", req["type"])
	assert.Equal(t, "validated", req["ledger_index"])
	assert.EqualValues(t, 100, req["limit"])

	require.Len(t, objects, 1)
	require.Len(t, objects[0].Memos, 1)
	assert.Equal(t, "AABB", objects[0].Memos[0].Memo.MemoData)
	assert.EqualValues(t, 745000000, objects[0].Date)
}

func TestAccountInfo_sequence(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		require.Equal(t, "account_info", req["command"])
		return map[string]any{
			"status": "success",
			"result": map[string]any{
				"account_data": map[string]any{"Sequence": 41, "Balance": "99000000"},
			},
		}
	})

	conn := dialFake(t, node)
	info, err := conn.AccountInfo(context.Background(), genesisAddress)
	require.NoError(t, err)
	assert.EqualValues(t, 41, info.Sequence)
	assert.Equal(t, "99000000", info.Balance)
}

func TestSession_interleavedStreamMessagesAreSkipped(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// A ledger-closed stream event arrives before our response.
		_ = conn.WriteJSON(map[string]any{"type": "ledgerClosed", "ledger_index": 123})
		_ = conn.WriteJSON(map[string]any{
			"id":     req["id"],
			"type":   "response",
			"status": "success",
			"result": map[string]any{"info": map[string]any{"server_state": "full"}},
		})
	}))
	defer srv.Close()

	d := NewNodeDialer(Config{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http")}, zap.NewNop())
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	info, err := conn.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "full", info.ServerState)
}

func TestSession_staleIDWithoutTypeIsSkipped(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// A leftover reply for another request, missing the type field.
		_ = conn.WriteJSON(map[string]any{"id": 9999, "status": "error", "error": "stale"})
		_ = conn.WriteJSON(map[string]any{
			"id":     req["id"],
			"status": "success",
			"result": map[string]any{"info": map[string]any{"server_state": "full"}},
		})
	}))
	defer srv.Close()

	d := NewNodeDialer(Config{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http")}, zap.NewNop())
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	info, err := conn.ServerInfo(context.Background())
	require.NoError(t, err, "a mismatched id must never satisfy the pending request")
	assert.Equal(t, "full", info.ServerState)
}

func TestDial_unreachableNodeIsConnectionError(t *testing.T) {
	d := NewNodeDialer(Config{
		Endpoint:       "ws://127.0.0.1:1", // nothing listens here
		ConnectTimeout: 200 * time.Millisecond,
		DialRetries:    1,
	}, zap.NewNop())

	_, err := d.Dial(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}

func TestClose_idempotent(t *testing.T) {
	node := newFakeNode(t, func(req map[string]any) map[string]any {
		return map[string]any{"status": "success", "result": map[string]any{}}
	})

	conn := dialFake(t, node)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err := conn.ServerInfo(context.Background())
	assert.True(t, errors.Is(err, ErrClosed) || errors.Is(err, ErrQuery))
}

func TestRippleTime(t *testing.T) {
	// Ripple epoch start is 2000-01-01T00:00:00Z.
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), RippleTime(0))

	var raw json.RawMessage = []byte(`745000000`)
	var secs uint32
	require.NoError(t, json.Unmarshal(raw, &secs))
	assert.Equal(t, 2023, RippleTime(secs).Year())
}
