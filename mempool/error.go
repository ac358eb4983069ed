// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/pkg/errors"
)

// RejectCode identifies why a transaction was refused admission.
type RejectCode int

// These constants classify admission failures into the caller-facing
// taxonomy.
const (
	// RejectInvalid is a malformed transaction: bad identity, oversized
	// memo, coinbase submitted as a regular transaction.
	RejectInvalid RejectCode = iota

	// RejectPolicy is a guardian deny.
	RejectPolicy

	// RejectInsufficientFunds means the sender balance, minus debits
	// already pending in the pool, cannot cover amount plus effective
	// fee.
	RejectInsufficientFunds

	// RejectDuplicate means the (sender, nonce) slot is already taken
	// in the pool or by an accepted transaction.
	RejectDuplicate

	// RejectMempoolFull means the pool is at capacity and the new
	// transaction does not pay better than the worst entry.
	RejectMempoolFull

	// RejectSignature means the injected verifier refused the
	// signature.
	RejectSignature
)

var rejectCodeStrings = map[RejectCode]string{
	RejectInvalid:           "RejectInvalid",
	RejectPolicy:            "RejectPolicy",
	RejectInsufficientFunds: "RejectInsufficientFunds",
	RejectDuplicate:         "RejectDuplicate",
	RejectMempoolFull:       "RejectMempoolFull",
	RejectSignature:         "RejectSignature",
}

// String returns the RejectCode as a human-readable name.
func (c RejectCode) String() string {
	if s := rejectCodeStrings[c]; s != "" {
		return s
	}
	return "Unknown RejectCode"
}

// TxRuleError identifies a transaction refused admission. It carries the
// machine-readable reject code, a human-readable message, and, for policy
// rejections, the guardian reasons and suggestions.
type TxRuleError struct {
	RejectCode  RejectCode
	Description string
	Reasons     []string
	Suggestions []string
}

// Error satisfies the error interface and prints human-readable errors.
func (e TxRuleError) Error() string {
	return e.Description
}

// txRuleError creates a TxRuleError given a set of arguments.
func txRuleError(c RejectCode, desc string) TxRuleError {
	return TxRuleError{RejectCode: c, Description: desc}
}

// ExtractRejectCode returns the RejectCode of a TxRuleError anywhere in
// the wrap chain of err, and whether one was found.
func ExtractRejectCode(err error) (RejectCode, bool) {
	var ruleErr TxRuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.RejectCode, true
	}
	return 0, false
}
