// Package service orchestrates anchoring and verification: fingerprint
// computation, audit-log recording, transaction construction and signing,
// and session-scoped ledger access.
//
// Low-level causes never cross the service boundary. Failures are logged
// in full here and surfaced to callers as one of two umbrella errors, so
// the transport layer cannot leak internals.
package service

import (
	"context"
	"errors"

	"github.com/xanchor-io/xanchor/internal/anchor/model"
	"github.com/xanchor-io/xanchor/internal/anchorlog"
	"github.com/xanchor-io/xanchor/internal/fingerprint"
	"github.com/xanchor-io/xanchor/internal/xrpl"
	"go.uber.org/zap"
)

var (
	// ErrProcessingFailed is the uniform anchor-path failure returned to
	// callers; the underlying cause is logged, not wrapped.
	ErrProcessingFailed = errors.New("failed to process anchor transaction")

	// ErrVerificationFailed is the uniform verify-path failure. It is
	// distinct from a NotFound result: NotFound means "we checked and it
	// is not there", this error means "we could not check".
	ErrVerificationFailed = errors.New("failed to check fingerprint against ledger")
)

// AnchorService anchors content fingerprints on the ledger.
//
// Each request runs strictly sequentially: fingerprint, audit-log record,
// sequence fetch, build+sign, submit. The ledger session is acquired after
// the local record succeeds and released on every exit path. Recording
// failure aborts the request before any ledger fee is spent (the strict
// variant of the persistence policy).
type AnchorService struct {
	dialer xrpl.Dialer
	keys   xrpl.Keypair
	log    anchorlog.Log
	logger *zap.Logger
}

// NewAnchorService creates an AnchorService. All collaborators are
// required; key material is loaded once at startup and injected here.
func NewAnchorService(dialer xrpl.Dialer, keys xrpl.Keypair, log anchorlog.Log, logger *zap.Logger) *AnchorService {
	return &AnchorService{dialer: dialer, keys: keys, log: log, logger: logger}
}

// Anchor fingerprints content, records it locally and submits the anchor
// transaction. The returned outcome carries the node's engine result for
// the caller to inspect; a ledger-level rejection is not an error.
func (s *AnchorService) Anchor(ctx context.Context, content []byte) (*model.AnchorOutcome, error) {
	fp := fingerprint.Sum(content)
	flog := s.logger.With(zap.String("fingerprint", fp.Hex()))

	if _, err := s.log.Append(ctx, fp.Hex(), int64(len(content))); err != nil {
		flog.Error("recording fingerprint failed, aborting before submission", zap.Error(err))
		return nil, ErrProcessingFailed
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		flog.Error("ledger connect failed", zap.Error(err))
		return nil, ErrProcessingFailed
	}
	defer conn.Close() //nolint:errcheck

	info, err := conn.AccountInfo(ctx, s.keys.Address())
	if err != nil {
		flog.Error("account sequence lookup failed", zap.Error(err))
		return nil, ErrProcessingFailed
	}

	payment := xrpl.BuildAnchorPayment(fp, len(content), s.keys.Address())
	payment.Sequence = info.Sequence

	signed, err := payment.Sign(s.keys)
	if err != nil {
		flog.Error("signing anchor payment failed", zap.Error(err))
		return nil, ErrProcessingFailed
	}

	result, err := conn.Submit(ctx, signed.Blob)
	if err != nil {
		flog.Error("anchor submission failed", zap.Error(err))
		return nil, ErrProcessingFailed
	}

	flog.Info("anchor submitted",
		zap.String("engine_result", result.Code),
		zap.String("tx_hash", signed.Hash),
		zap.Int("content_size", len(content)),
	)

	return &model.AnchorOutcome{
		Fingerprint:   fp.Hex(),
		ResultCode:    result.Code,
		ResultMessage: result.Message,
		TxHash:        signed.Hash,
	}, nil
}
