// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool provides the pending-transaction pool: policy-gated
// admission, (sender, nonce) deduplication, pending-balance accounting and
// fee-per-byte eviction when the pool is at capacity.
package mempool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ramianet/ramiad/chain"
	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/guardian"
	"github.com/ramianet/ramiad/wire"
)

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// Params identifies the network the pool is associated with.
	Params *chaincfg.Params

	// SigVerifier validates transaction signatures at admission.
	SigVerifier chain.SigVerifier

	// FetchBalance returns the current confirmed balance of an account.
	FetchBalance func(addr string) uint64

	// FetchNonce returns the last accepted nonce of an account.
	FetchNonce func(addr string) uint64

	// BestHeight returns the current chain height, recorded on each
	// admitted transaction.
	BestHeight func() uint64

	// TimeSource provides the admission timestamp recorded on each entry
	// and the clock for the guardian burst window. Tests substitute a fixed clock.
	TimeSource func() time.Time
}

// txKey is the (sender, nonce) slot a pending transaction occupies.
type txKey struct {
	sender string
	nonce  uint64
}

// TxDesc is a descriptor about a transaction in the pool along with the
// admission metadata block building needs.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *wire.Tx

	// Added is the time when the entry was added to the pool.
	Added time.Time

	// Height is the chain height when the entry was admitted.
	Height uint64

	// EffectiveFee is the declared fee scaled by the admission-time
	// policy multiplier. It drives priority and eviction.
	EffectiveFee uint64

	// Decision is the guardian verdict recorded at admission.
	Decision *guardian.Decision

	// Order is the admission sequence number. It breaks eviction and
	// selection ties toward the oldest entry.
	Order uint64

	// size is the cached serialized size.
	size int
}

// Size returns the cached serialized size of the transaction.
func (d *TxDesc) Size() int {
	return d.size
}

// AdmissionResult reports a successful admission back to the caller.
type AdmissionResult struct {
	// TxID is the admitted transaction's identifier.
	TxID string `json:"txid"`

	// EffectiveFee is the fee the transaction will be charged if mined.
	EffectiveFee uint64 `json:"effective_fee"`

	// Policy is the guardian decision envelope.
	Policy *guardian.Envelope `json:"policy"`
}

// TxPool is the pool of unmined transactions. Admissions are serialized
// under the pool lock, making the admission order total and deterministic.
type TxPool struct {
	mtx sync.RWMutex
	cfg Config

	pool      map[txKey]*TxDesc
	nextOrder uint64
	burst     *guardian.BurstTracker

	// pendingDebits tracks, per sender, the total of amounts plus
	// effective fees already committed to pool entries, so a sender
	// cannot queue more spending than their balance covers.
	pendingDebits map[string]uint64
}

// New returns a new memory pool for validating and storing transactions
// until they are mined into a block.
func New(cfg *Config) *TxPool {
	return &TxPool{
		cfg:           *cfg,
		pool:          make(map[txKey]*TxDesc),
		burst:         guardian.NewBurstTracker(),
		pendingDebits: make(map[string]uint64),
	}
}

// Count returns the number of transactions in the pool.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	return len(mp.pool)
}

// HaveTransaction returns whether the (sender, nonce) slot is occupied.
func (mp *TxPool) HaveTransaction(sender string, nonce uint64) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	_, exists := mp.pool[txKey{sender: sender, nonce: nonce}]
	return exists
}

// MiningDescs returns a slice of mining descriptors for all the
// transactions in the pool, in admission order.
func (mp *TxPool) MiningDescs() []*TxDesc {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	descs := make([]*TxDesc, 0, len(mp.pool))
	for _, desc := range mp.pool {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Order < descs[j].Order })
	return descs
}

// ProcessTransaction validates tx against the pool, the policy and the
// confirmed state, and admits it when everything passes. Admission is
// all-or-nothing and never mutates chain state.
func (mp *TxPool) ProcessTransaction(tx *wire.Tx) (*AdmissionResult, error) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	if tx.IsCoinBase() {
		return nil, txRuleError(RejectInvalid,
			"coinbase transactions cannot be submitted to the pool")
	}
	if err := chain.CheckTransactionSanity(tx, mp.cfg.Params); err != nil {
		return nil, txRuleError(RejectInvalid, err.Error())
	}

	key := txKey{sender: tx.Sender, nonce: tx.Nonce}
	if _, exists := mp.pool[key]; exists {
		return nil, txRuleError(RejectDuplicate, fmt.Sprintf(
			"sender %s already has a pending transaction with nonce %d",
			tx.Sender, tx.Nonce))
	}
	if tx.Nonce <= mp.cfg.FetchNonce(tx.Sender) {
		return nil, txRuleError(RejectDuplicate, fmt.Sprintf(
			"sender %s nonce %d is not above the last accepted nonce %d",
			tx.Sender, tx.Nonce, mp.cfg.FetchNonce(tx.Sender)))
	}

	if !mp.cfg.SigVerifier(tx) {
		return nil, txRuleError(RejectSignature,
			"transaction signature verification failed")
	}

	now := mp.cfg.TimeSource()
	decision := guardian.ScoreTx(tx, &guardian.Context{
		RecentSends: mp.burst.Count(tx.Sender, now.Unix()),
		Outputs:     1,
	})
	if !decision.Allow {
		ruleErr := txRuleError(RejectPolicy, fmt.Sprintf(
			"transaction denied by policy with suspicion %.2f",
			decision.Suspicion()))
		ruleErr.Reasons = decision.Reasons
		ruleErr.Suggestions = decision.Suggestions
		return nil, ruleErr
	}
	effectiveFee := tx.Fee * decision.FeeMultiplier

	debit := tx.Amount + effectiveFee
	available := mp.cfg.FetchBalance(tx.Sender)
	pending := mp.pendingDebits[tx.Sender]
	if available < pending+debit {
		return nil, txRuleError(RejectInsufficientFunds, fmt.Sprintf(
			"sender %s has %d available after %d pending, below the "+
				"%d required", tx.Sender, available, pending, debit))
	}

	desc := &TxDesc{
		Tx:           tx,
		Added:        now,
		Height:       mp.cfg.BestHeight(),
		EffectiveFee: effectiveFee,
		Decision:     decision,
		Order:        mp.nextOrder,
		size:         tx.SerializeSize(),
	}

	if len(mp.pool) >= mp.cfg.Params.MaxMempoolTx {
		if err := mp.evictFor(desc); err != nil {
			return nil, err
		}
	}

	mp.nextOrder++
	mp.pool[key] = desc
	mp.pendingDebits[tx.Sender] = pending + debit
	mp.burst.Record(tx.Sender, now.Unix())

	log.Debugf("Admitted tx %s from %s (fee %d, effective %d, suspicion %d/100)",
		tx.TxID(), tx.Sender, tx.Fee, effectiveFee, decision.SuspicionCents)

	return &AdmissionResult{
		TxID:         tx.TxID().String(),
		EffectiveFee: effectiveFee,
		Policy:       decision.Envelope(),
	}, nil
}

// worseThan reports whether a pays strictly less per byte than b, with
// ties resolved toward the older admission.
func worseThan(a, b *TxDesc) bool {
	lhs := a.EffectiveFee * uint64(b.size)
	rhs := b.EffectiveFee * uint64(a.size)
	if lhs != rhs {
		return lhs < rhs
	}
	return a.Order < b.Order
}

// evictFor makes room for the incoming descriptor by dropping the worst
// pool entry, or refuses the incoming transaction when it is itself the
// worst. Callers must hold the pool lock for writes.
func (mp *TxPool) evictFor(incoming *TxDesc) error {
	var worstKey txKey
	var worst *TxDesc
	for key, desc := range mp.pool {
		if worst == nil || worseThan(desc, worst) {
			worstKey, worst = key, desc
		}
	}

	if worst == nil || !worseThan(worst, incoming) {
		return txRuleError(RejectMempoolFull, fmt.Sprintf(
			"mempool is at its %d-transaction capacity and the incoming "+
				"fee rate does not beat the worst entry", mp.cfg.Params.MaxMempoolTx))
	}

	mp.removeLocked(worstKey, worst)
	log.Debugf("Evicted tx %s (fee rate below incoming %s)",
		worst.Tx.TxID(), incoming.Tx.TxID())
	return nil
}

// removeLocked removes one entry and releases its pending debit. Callers
// must hold the pool lock for writes.
func (mp *TxPool) removeLocked(key txKey, desc *TxDesc) {
	delete(mp.pool, key)

	debit := desc.Tx.Amount + desc.EffectiveFee
	if remaining := mp.pendingDebits[desc.Tx.Sender]; remaining > debit {
		mp.pendingDebits[desc.Tx.Sender] = remaining - debit
	} else {
		delete(mp.pendingDebits, desc.Tx.Sender)
	}
}

// RemoveForBlock removes every transaction included in an accepted block
// from the pool.
func (mp *TxPool) RemoveForBlock(block *wire.MsgBlock) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		key := txKey{sender: tx.Sender, nonce: tx.Nonce}
		if desc, exists := mp.pool[key]; exists {
			mp.removeLocked(key, desc)
		}
	}
}
