// Package fingerprint computes content fingerprints for anchoring.
//
// A fingerprint is the SHA-256 digest of the full content byte sequence.
// It is rendered lowercase when returned to callers and uppercase when
// embedded in ledger memos; verification relies on an exact, case-sensitive
// match against the ledger-stored uppercase form, so the two renderings
// must never be mixed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Size is the fingerprint length in bytes.
const Size = sha256.Size

// Fingerprint is a 256-bit content digest.
type Fingerprint [Size]byte

// Sum computes the fingerprint of data. Empty input is valid and yields
// the digest of the empty byte sequence.
func Sum(data []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(data))
}

// Hex returns the caller-facing lowercase hexadecimal rendering.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// MemoHex returns the ledger-facing uppercase hexadecimal rendering,
// the form stored in anchor transaction memos.
func (f Fingerprint) MemoHex() string {
	return strings.ToUpper(hex.EncodeToString(f[:]))
}

func (f Fingerprint) String() string { return f.Hex() }
