// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"

	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/guardian"
	"github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/tokenomics"
	"github.com/ramianet/ramiad/wire"
)

// CheckTransactionSanity performs context-free checks on a transaction:
// field sizes, value ranges and the coinbase shape rules that do not need
// any chain state.
func CheckTransactionSanity(tx *wire.Tx, params *chaincfg.Params) error {
	if tx.Recipient == "" {
		return ruleError(ErrBadTxValue, "transaction has no recipient")
	}
	if len(tx.Recipient) > wire.MaxIdentityLen {
		return ruleError(ErrBadTxValue, fmt.Sprintf(
			"recipient identity is %d bytes, above the %d-byte limit",
			len(tx.Recipient), wire.MaxIdentityLen))
	}
	if len(tx.Sender) > wire.MaxIdentityLen {
		return ruleError(ErrBadTxValue, fmt.Sprintf(
			"sender identity is %d bytes, above the %d-byte limit",
			len(tx.Sender), wire.MaxIdentityLen))
	}
	if len(tx.Memo) > wire.MaxMemoLen {
		return ruleError(ErrBadTxValue, fmt.Sprintf(
			"memo is %d bytes, above the %d-byte limit",
			len(tx.Memo), wire.MaxMemoLen))
	}
	if len(tx.Signature) > wire.MaxSignatureLen {
		return ruleError(ErrBadTxValue, fmt.Sprintf(
			"signature is %d bytes, above the %d-byte limit",
			len(tx.Signature), wire.MaxSignatureLen))
	}
	if tx.Amount > params.TotalSupply {
		return ruleError(ErrBadTxValue, fmt.Sprintf(
			"transaction amount %d is above the %d supply cap",
			tx.Amount, params.TotalSupply))
	}
	if tx.Fee > params.TotalSupply {
		return ruleError(ErrBadTxValue, fmt.Sprintf(
			"transaction fee %d is above the %d supply cap",
			tx.Fee, params.TotalSupply))
	}

	if tx.IsCoinBase() {
		if tx.Fee != 0 {
			return ruleError(ErrBadTxValue, "coinbase carries a fee")
		}
		if tx.Nonce != 0 {
			return ruleError(ErrBadTxValue, "coinbase carries a nonce")
		}
		if len(tx.Signature) != 0 {
			return ruleError(ErrBadTxValue, "coinbase carries a signature")
		}
	}
	return nil
}

// txEffect is the connect-time accounting for one regular transaction: the
// policy decision the block binds and the resulting effective fee.
type txEffect struct {
	tx           *wire.Tx
	decision     *guardian.Decision
	effectiveFee uint64
}

// blockPolicyDecisions scores every regular transaction of a block with
// the block-scope burst context: for the transaction at position i, the
// burst count is the number of earlier transactions in the same block from
// the same sender. The result is fully determined by the block bytes, so
// template building, validation and replay all arrive at the same
// effective fees and the same policy digest.
func blockPolicyDecisions(block *wire.MsgBlock) ([]txEffect, error) {
	effects := make([]txEffect, 0, len(block.Transactions))
	senderSeen := make(map[string]int)

	for _, tx := range block.Transactions[1:] {
		decision := guardian.ScoreTx(tx, &guardian.Context{
			RecentSends: senderSeen[tx.Sender],
			Outputs:     1,
		})
		if !decision.Allow {
			return nil, ruleError(ErrPolicyDenied, fmt.Sprintf(
				"block includes policy-denied transaction %s", tx.TxID()))
		}
		senderSeen[tx.Sender]++
		effects = append(effects, txEffect{
			tx:           tx,
			decision:     decision,
			effectiveFee: tx.Fee * decision.FeeMultiplier,
		})
	}
	return effects, nil
}

// checkBlockSanity performs context-free validation on a block: size
// limits, merkle commitment, coinbase placement and per-transaction
// sanity.
func (c *Chain) checkBlockSanity(block *wire.MsgBlock) error {
	numTx := len(block.Transactions)
	if numTx == 0 {
		return ruleError(ErrNoTransactions, "block does not contain any transactions")
	}

	if uint32(block.SerializeSize()) > c.params.MaxBlockWeight {
		return ruleError(ErrBlockTooBig, fmt.Sprintf(
			"serialized block is %d bytes, above the %d-byte limit",
			block.SerializeSize(), c.params.MaxBlockWeight))
	}

	// The first transaction in a block must be a coinbase, and it must
	// be the only one.
	if !block.Transactions[0].IsCoinBase() {
		return ruleError(ErrFirstTxNotCoinbase,
			"first transaction in block is not the coinbase")
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinBase() {
			return ruleError(ErrMultipleCoinbases,
				"block contains more than one coinbase")
		}
	}

	for _, tx := range block.Transactions {
		if err := CheckTransactionSanity(tx, c.params); err != nil {
			return err
		}
	}

	wantMerkleRoot := BuildMerkleRoot(block)
	if !wantMerkleRoot.IsEqual(&block.Header.MerkleRoot) {
		return ruleError(ErrBadMerkleRoot, fmt.Sprintf(
			"block merkle root is invalid: got %s, want %s",
			block.Header.MerkleRoot, wantMerkleRoot))
	}

	return nil
}

// BehaviorFlags is a bitmask defining tweaks to the normal behavior when
// performing chain processing and consensus rules checks.
type BehaviorFlags uint32

const (
	// BFNoPoWCheck may be set to indicate the proof of work check which
	// ensures a block hashes to a value less than the required target
	// will not be performed. Template validation uses it since an
	// unsolved block cannot pass that check yet.
	BFNoPoWCheck BehaviorFlags = 1 << iota

	// BFNone is a convenience value to specifically indicate no flags.
	BFNone BehaviorFlags = 0
)

// connectResult is everything checkConnectBlock derives while validating a
// block against the current state: the balance and nonce deltas to commit
// and the issuance accounting for the ledger entry.
type connectResult struct {
	balances  map[string]uint64
	nonces    map[string]uint64
	subsidy   uint64
	feesTotal uint64
	decisions []guardian.TxDecision
}

// checkConnectBlock validates block as the next block on top of the
// current tip and computes the resulting state deltas. It does not mutate
// chain state. The chain lock must be held for reads.
func (c *Chain) checkConnectBlock(block *wire.MsgBlock, signals *signal.Snapshot, flags BehaviorFlags) (*connectResult, error) {
	tip := c.tip()
	header := &block.Header

	if !header.PrevBlock.IsEqual(&tip.hash) {
		return nil, ruleError(ErrPrevBlockMismatch, fmt.Sprintf(
			"block previous hash %s is not the current tip %s",
			header.PrevBlock, tip.hash))
	}
	blockHash := block.BlockHash()
	if _, exists := c.index[blockHash]; exists {
		return nil, ruleError(ErrDuplicateBlock, fmt.Sprintf(
			"already have block %s", blockHash))
	}
	if header.Timestamp < tip.timestamp {
		return nil, ruleError(ErrInvalidTime, fmt.Sprintf(
			"block timestamp %d is before parent timestamp %d",
			header.Timestamp, tip.timestamp))
	}

	wantBits := c.calcNextRequiredDifficulty(tip)
	if header.Bits != wantBits {
		return nil, ruleError(ErrUnexpectedDifficulty, fmt.Sprintf(
			"block difficulty %08x is not the expected %08x",
			header.Bits, wantBits))
	}
	if flags&BFNoPoWCheck != BFNoPoWCheck {
		err := checkProofOfWork(&blockHeaderLike{blockHash: blockHash, bits: header.Bits},
			c.params.PowLimit)
		if err != nil {
			return nil, err
		}
	}

	if err := c.checkBlockSanity(block); err != nil {
		return nil, err
	}

	effects, err := blockPolicyDecisions(block)
	if err != nil {
		return nil, err
	}

	// Apply the regular transactions against a working copy of the
	// touched accounts, enforcing signatures, nonce monotonicity and
	// balance sufficiency including effective fees.
	result := &connectResult{
		balances: make(map[string]uint64),
		nonces:   make(map[string]uint64),
	}
	balance := func(addr string) uint64 {
		if b, ok := result.balances[addr]; ok {
			return b
		}
		return c.balances[addr]
	}
	lastNonce := func(addr string) uint64 {
		if n, ok := result.nonces[addr]; ok {
			return n
		}
		return c.nonces[addr]
	}

	for i := range effects {
		effect := &effects[i]
		tx := effect.tx

		if !c.cfg.SigVerifier(tx) {
			return nil, ruleError(ErrBadSignature, fmt.Sprintf(
				"signature verification failed for transaction %s", tx.TxID()))
		}
		if tx.Nonce <= lastNonce(tx.Sender) {
			return nil, ruleError(ErrNonceTooLow, fmt.Sprintf(
				"transaction %s nonce %d does not increase over %d",
				tx.TxID(), tx.Nonce, lastNonce(tx.Sender)))
		}

		debit := tx.Amount + effect.effectiveFee
		if balance(tx.Sender) < debit {
			return nil, ruleError(ErrSpendTooHigh, fmt.Sprintf(
				"sender %s balance %d is below amount %d plus effective fee %d",
				tx.Sender, balance(tx.Sender), tx.Amount, effect.effectiveFee))
		}

		result.balances[tx.Sender] = balance(tx.Sender) - debit
		result.balances[tx.Recipient] = balance(tx.Recipient) + tx.Amount
		result.nonces[tx.Sender] = tx.Nonce
		result.feesTotal += effect.effectiveFee
		result.decisions = append(result.decisions, guardian.TxDecision{
			TxID:           tx.TxID(),
			SuspicionCents: uint64(effect.decision.SuspicionCents),
			FeeMultiplier:  effect.decision.FeeMultiplier,
		})
	}

	// The coinbase may pay out at most the subsidy plus the aggregated
	// effective fees, and its subsidy portion must fit under the supply
	// cap. The subsidy ceiling depends on the congestion snapshot bound
	// at mine time, so it can only be enforced when that snapshot is at
	// hand; replay from disk passes nil and relies on the checks the
	// block passed when it was first accepted.
	coinbase := block.Transactions[0]
	if signals != nil {
		maxSubsidy := tokenomics.Subsidy(c.params, tip.height+1, c.mintedTotal, signals)
		maxCoinbase := maxSubsidy + result.feesTotal
		if coinbase.Amount > maxCoinbase {
			return nil, ruleError(ErrBadCoinbaseValue, fmt.Sprintf(
				"coinbase pays %d which is more than the allowed subsidy %d "+
					"plus fees %d", coinbase.Amount, maxSubsidy, result.feesTotal))
		}
	}

	// The coinbase must collect at least the aggregated effective fees:
	// the fees were already debited from the senders, and an underpaying
	// coinbase would make them vanish from the books entirely.
	if coinbase.Amount < result.feesTotal {
		return nil, ruleError(ErrBadCoinbaseValue, fmt.Sprintf(
			"coinbase pays %d which is less than the %d in collected fees",
			coinbase.Amount, result.feesTotal))
	}
	subsidy := coinbase.Amount - result.feesTotal
	if c.mintedTotal+subsidy > c.params.TotalSupply {
		return nil, ruleError(ErrSupplyOverflow, fmt.Sprintf(
			"coinbase subsidy %d would push minted supply past the %d cap",
			subsidy, c.params.TotalSupply))
	}
	result.subsidy = subsidy

	result.balances[coinbase.Recipient] = balance(coinbase.Recipient) + coinbase.Amount
	return result, nil
}
