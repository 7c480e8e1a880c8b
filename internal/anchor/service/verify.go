package service

import (
	"context"

	"github.com/xanchor-io/xanchor/internal/anchor/model"
	"github.com/xanchor-io/xanchor/internal/fingerprint"
	"github.com/xanchor-io/xanchor/internal/xrpl"
	"go.uber.org/zap"
)

const (
	// stateObjectType is the ledger object type the verification scan
	// queries; anchored fingerprints surface as memos on these objects.
	stateObjectType = "state"

	// statePageLimit bounds the account_objects query. Verification only
	// guarantees correctness within this first page: a match beyond it is
	// reported as NotFound.
	statePageLimit = 100
)

// VerificationService checks whether content was previously anchored.
//
// The scan is scoped to the configured anchoring account's own state
// objects. That narrowing is intentional: a match proves prior anchoring
// by this identity, not by anyone on the ledger.
type VerificationService struct {
	dialer  xrpl.Dialer
	account string
	logger  *zap.Logger
}

// NewVerificationService creates a VerificationService scanning the state
// objects owned by account.
func NewVerificationService(dialer xrpl.Dialer, account string, logger *zap.Logger) *VerificationService {
	return &VerificationService{dialer: dialer, account: account, logger: logger}
}

// Verify recomputes the content fingerprint and scans the account's state
// objects (validated ledger, first page only) for a first memo whose data
// equals the uppercase fingerprint, byte for byte. A clean miss is a
// NotFound result; only transport/query failures return an error.
func (s *VerificationService) Verify(ctx context.Context, content []byte) (*model.VerificationResult, error) {
	fp := fingerprint.Sum(content)

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.logger.Error("ledger connect failed", zap.String("fingerprint", fp.Hex()), zap.Error(err))
		return nil, ErrVerificationFailed
	}
	defer conn.Close() //nolint:errcheck

	objects, err := conn.AccountObjects(ctx, s.account, stateObjectType, statePageLimit)
	if err != nil {
		s.logger.Error("state object query failed", zap.String("fingerprint", fp.Hex()), zap.Error(err))
		return nil, ErrVerificationFailed
	}

	want := fp.MemoHex()
	for _, obj := range objects {
		if len(obj.Memos) == 0 {
			continue
		}
		if obj.Memos[0].Memo.MemoData == want {
			s.logger.Info("fingerprint found in ledger state",
				zap.String("fingerprint", fp.Hex()),
				zap.Uint32("date", obj.Date),
			)
			return &model.VerificationResult{
				Found:     true,
				Timestamp: xrpl.RippleTime(obj.Date),
			}, nil
		}
	}

	s.logger.Info("fingerprint not found in ledger state",
		zap.String("fingerprint", fp.Hex()),
		zap.Int("objects_scanned", len(objects)),
	)
	return &model.VerificationResult{Found: false}, nil
}
