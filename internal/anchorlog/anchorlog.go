// Package anchorlog implements the local append-only record of anchored
// fingerprints.
//
// Every anchoring request appends one entry before the ledger transaction
// is submitted, so the log is the durable audit trail of what this service
// attempted to anchor and when. Entries are hash-chained: each records the
// SHA-256 of its predecessor, starting from a well-known genesis constant,
// making after-the-fact tampering detectable via Verify.
//
// Two implementations of the Log interface are provided:
//   - MemoryLog: in-process, for testing and development.
//   - PostgresLog: durable, for production use.
package anchorlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash is the canonical hash of the genesis entry; the chain anchors
// to this constant rather than to a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one anchored-fingerprint record.
type Entry struct {
	Index       int       `json:"index"`
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`  // lowercase hex
	ContentSize int64     `json:"content_size"` // bytes of anchored content
	PrevHash    string    `json:"prev_hash"`
	Hash        string    `json:"hash"`
}

// Log is the append-only anchored-fingerprint store.
type Log interface {
	// Append records a fingerprint and returns the stored entry.
	Append(ctx context.Context, fingerprint string, contentSize int64) (*Entry, error)
	// Get returns the entry at index.
	Get(ctx context.Context, index int) (*Entry, error)
	// Len returns the number of entries including genesis.
	Len(ctx context.Context) (int, error)
	// Root returns the hash of the newest entry.
	Root(ctx context.Context) (string, error)
	// Verify walks the full chain and reports the first inconsistency.
	Verify(ctx context.Context) error
}

// hashEntry computes the chained hash over an entry's fields. Never called
// on the genesis entry (index 0).
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%d|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Fingerprint, e.ContentSize, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}
