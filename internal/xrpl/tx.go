package xrpl

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Transaction constants for anchor payments. Fee is fixed and independent
// of content size; the amount suffix reproduces the reference pricing of
// the anchoring account and must not be normalised — verification depends
// on byte-exact memo and amount values already on the ledger.
const (
	anchorFeeDrops    = "100000"
	amountDropsSuffix = "0000000"

	// memoTypeHash tags anchor memos; the memo data is the uppercase
	// hex fingerprint.
	memoTypeHash = "Hash"

	paymentTxType = uint16(0)
)

// Memo is a single transaction memo entry.
type Memo struct {
	MemoType string // hex-encoded tag
	MemoData string // hex-encoded payload
}

// Payment is an unsigned XRPL payment descriptor. An anchor payment is a
// self-payment whose only purpose is carrying the content fingerprint as
// tamper-evident metadata. It is built fresh per anchoring request, signed
// once, submitted once and discarded.
type Payment struct {
	Account     string
	Destination string
	Amount      string // drops
	Fee         string // drops
	Sequence    uint32
	Memos       []Memo
}

// DeriveAmountUnits returns the whole currency units charged for anchoring
// contentLen bytes: one unit per started kilobyte.
func DeriveAmountUnits(contentLen int) int64 {
	return int64((contentLen + 999) / 1000)
}

// Fingerprinter is the subset of the content fingerprint consumed here:
// its ledger-facing uppercase hexadecimal rendering.
type Fingerprinter interface {
	MemoHex() string
}

// BuildAnchorPayment constructs the unsigned anchor transaction for a
// fingerprint of content of contentLen bytes, issued by account. A
// zero-length input yields a zero-amount payment; it is passed through
// unmodified and the ledger network decides whether to accept it.
func BuildAnchorPayment(fp Fingerprinter, contentLen int, account string) *Payment {
	return &Payment{
		Account:     account,
		Destination: account,
		Amount:      strconv.FormatInt(DeriveAmountUnits(contentLen), 10) + amountDropsSuffix,
		Fee:         anchorFeeDrops,
		// Memo fields are hex on the wire. MemoData carries the raw digest
		// bytes, which the network renders back as the uppercase hex the
		// verification scan matches against.
		Memos: []Memo{{
			MemoType: strings.ToUpper(hex.EncodeToString([]byte(memoTypeHash))),
			MemoData: fp.MemoHex(),
		}},
	}
}

// SignedTx is a fully signed transaction ready for submission.
type SignedTx struct {
	// Blob is the uppercase hex serialization submitted to the network.
	Blob string
	// Hash is the transaction hash the network will index it under.
	Hash string
}

// Sign serializes the payment, signs it with kp and returns the
// submittable blob. The payment's Sequence must already be set.
func (p *Payment) Sign(kp Keypair) (*SignedTx, error) {
	signingData, err := serializePayment(p, kp.PublicKey(), nil)
	if err != nil {
		return nil, err
	}

	sig, err := kp.Sign(append(signingPrefix(), signingData...))
	if err != nil {
		return nil, err
	}

	signed, err := serializePayment(p, kp.PublicKey(), sig)
	if err != nil {
		return nil, err
	}

	hash := sha512Half(append(txHashPrefix(), signed...))
	return &SignedTx{
		Blob: strings.ToUpper(hex.EncodeToString(signed)),
		Hash: strings.ToUpper(hex.EncodeToString(hash)),
	}, nil
}

// signingPrefix is the single-signer signing prefix "STX\0".
func signingPrefix() []byte { return []byte{0x53, 0x54, 0x58, 0x00} }

// txHashPrefix is the transaction identifying-hash prefix "TXN\0".
func txHashPrefix() []byte { return []byte{0x54, 0x58, 0x4e, 0x00} }
