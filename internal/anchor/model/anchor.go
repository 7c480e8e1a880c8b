// Package model defines the outcome types the anchoring services return.
package model

import "time"

// AnchorOutcome is the result of one anchoring request. The fingerprint is
// reported lowercase; the ledger holds it uppercase in the memo. A failing
// ResultCode is a ledger-level verdict, not a service error — the caller
// inspects it.
type AnchorOutcome struct {
	Fingerprint   string `json:"hash"`
	ResultCode    string `json:"transactionResult"`
	ResultMessage string `json:"resultMessage"`
	TxHash        string `json:"txHash,omitempty"`
}

// VerificationResult is the verdict of one verification request.
//
// NotFound means no matching memo exists within the first queried page of
// the account's state objects; it is not an exhaustive proof of absence.
type VerificationResult struct {
	Found bool
	// Timestamp is the recorded time of the matching state object.
	// Zero when Found is false.
	Timestamp time.Time
}
