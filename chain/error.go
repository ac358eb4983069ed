// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock ErrorCode = iota

	// ErrBlockTooBig indicates the serialized block size exceeds the
	// maximum allowed size.
	ErrBlockTooBig

	// ErrInvalidTime indicates the time in the passed block has a
	// timestamp before the previous block.
	ErrInvalidTime

	// ErrHighHash indicates the block does not hash to a value which is
	// lower than the required target difficulty.
	ErrHighHash

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// value or is out of range.
	ErrUnexpectedDifficulty

	// ErrBadMerkleRoot indicates the calculated merkle root does not
	// match the expected value.
	ErrBadMerkleRoot

	// ErrPrevBlockMismatch indicates a block's declared predecessor is
	// not the current chain tip.
	ErrPrevBlockMismatch

	// ErrNoTransactions indicates the block does not have at least one
	// transaction. A valid block must have at least the coinbase.
	ErrNoTransactions

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases

	// ErrBadCoinbaseValue indicates the coinbase pays more than the
	// allowed subsidy plus the sum of all effective fees, or less than
	// the effective fees collected.
	ErrBadCoinbaseValue

	// ErrSupplyOverflow indicates accepting the block would push the
	// total minted amount above the supply cap.
	ErrSupplyOverflow

	// ErrBadTxValue indicates a transaction carries an invalid amount,
	// fee, memo or identity.
	ErrBadTxValue

	// ErrBadSignature indicates the configured signature verifier
	// rejected a transaction.
	ErrBadSignature

	// ErrNonceTooLow indicates a transaction's sender nonce does not
	// increase over the sender's last accepted nonce.
	ErrNonceTooLow

	// ErrSpendTooHigh indicates a sender's balance is insufficient for
	// an amount plus its effective fee.
	ErrSpendTooHigh

	// ErrPolicyDenied indicates the guardian policy denied a
	// transaction included in a block.
	ErrPolicyDenied
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:       "ErrDuplicateBlock",
	ErrBlockTooBig:          "ErrBlockTooBig",
	ErrInvalidTime:          "ErrInvalidTime",
	ErrHighHash:             "ErrHighHash",
	ErrUnexpectedDifficulty: "ErrUnexpectedDifficulty",
	ErrBadMerkleRoot:        "ErrBadMerkleRoot",
	ErrPrevBlockMismatch:    "ErrPrevBlockMismatch",
	ErrNoTransactions:       "ErrNoTransactions",
	ErrFirstTxNotCoinbase:   "ErrFirstTxNotCoinbase",
	ErrMultipleCoinbases:    "ErrMultipleCoinbases",
	ErrBadCoinbaseValue:     "ErrBadCoinbaseValue",
	ErrSupplyOverflow:       "ErrSupplyOverflow",
	ErrBadTxValue:           "ErrBadTxValue",
	ErrBadSignature:         "ErrBadSignature",
	ErrNonceTooLow:          "ErrNonceTooLow",
	ErrSpendTooHigh:         "ErrSpendTooHigh",
	ErrPolicyDenied:         "ErrPolicyDenied",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many
// validation rules. The caller can use type assertions to determine if a
// failure was specifically due to a rule violation and access the ErrorCode
// field to ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// ExtractRuleErrorCode returns the ErrorCode of a RuleError anywhere in the
// wrap chain of err, and whether one was found.
func ExtractRuleErrorCode(err error) (ErrorCode, bool) {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.ErrorCode, true
	}
	return 0, false
}

// AuditGapError reports a block that became durable while its rewards
// ledger entry could not be appended. The audit trail is behind the chain
// by exactly that block; mining must not continue until an operator has
// repaired the ledger.
type AuditGapError struct {
	Height uint64
	Err    error
}

// Error satisfies the error interface and prints the error.
func (e AuditGapError) Error() string {
	return fmt.Sprintf("block %d accepted but its ledger entry could not "+
		"be appended: %s", e.Height, e.Err)
}

// Unwrap returns the underlying ledger error.
func (e AuditGapError) Unwrap() error {
	return e.Err
}
