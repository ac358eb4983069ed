// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"container/heap"
	"time"

	"github.com/ramianet/ramiad/chain"
	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/guardian"
	"github.com/ramianet/ramiad/mempool"
	"github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/tokenomics"
	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// blockHeaderOverhead is the number of bytes the header and the maximum
// possible transaction count prefix take up in a serialized block.
const blockHeaderOverhead = wire.BlockHeaderPayload + wire.MaxVarIntPayload

// TxSource represents a source of transactions to consider for inclusion
// in new blocks.
//
// The interface contract requires that all of these methods are safe for
// concurrent access with respect to the source.
type TxSource interface {
	// MiningDescs returns a slice of mining descriptors for all the
	// transactions in the source pool.
	MiningDescs() []*mempool.TxDesc

	// HaveTransaction returns whether or not the passed (sender, nonce)
	// slot exists in the source pool.
	HaveTransaction(sender string, nonce uint64) bool
}

// txPrioItem houses a transaction along with extra information that allows
// the transaction to be prioritized.
type txPrioItem struct {
	desc     *mempool.TxDesc
	feePerKB uint64
}

// txPriorityQueueLessFunc describes a function that can be used as a
// compare function for a transaction priority queue (txPriorityQueue).
type txPriorityQueueLessFunc func(*txPriorityQueue, int, int) bool

// txPriorityQueue implements a priority queue of txPrioItem elements that
// supports an arbitrary compare function as defined by
// txPriorityQueueLessFunc.
type txPriorityQueue struct {
	lessFunc txPriorityQueueLessFunc
	items    []*txPrioItem
}

// Len returns the number of items in the priority queue. It is part of the
// heap.Interface implementation.
func (pq *txPriorityQueue) Len() int {
	return len(pq.items)
}

// Less returns whether the item in the priority queue with index i should
// sort before the item with index j by deferring to the assigned less
// function. It is part of the heap.Interface implementation.
func (pq *txPriorityQueue) Less(i, j int) bool {
	return pq.lessFunc(pq, i, j)
}

// Swap swaps the items at the passed indices in the priority queue. It is
// part of the heap.Interface implementation.
func (pq *txPriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push pushes the passed item onto the priority queue. It is part of the
// heap.Interface implementation.
func (pq *txPriorityQueue) Push(x interface{}) {
	pq.items = append(pq.items, x.(*txPrioItem))
}

// Pop removes the highest priority item (according to Less) from the
// priority queue and returns it. It is part of the heap.Interface
// implementation.
func (pq *txPriorityQueue) Pop() interface{} {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items[n-1] = nil
	pq.items = pq.items[0 : n-1]
	return item
}

// SetLessFunc sets the compare function for the priority queue to the
// provided function. It also invokes heap.Init on the priority queue using
// the new function so it can immediately be used with heap.Push/Pop.
func (pq *txPriorityQueue) SetLessFunc(lessFunc txPriorityQueueLessFunc) {
	pq.lessFunc = lessFunc
	heap.Init(pq)
}

// txPQByFee sorts a txPriorityQueue by effective fees per kilobyte,
// breaking ties toward the older admission so selection is deterministic.
func txPQByFee(pq *txPriorityQueue, i, j int) bool {
	if pq.items[i].feePerKB != pq.items[j].feePerKB {
		return pq.items[i].feePerKB > pq.items[j].feePerKB
	}
	return pq.items[i].desc.Order < pq.items[j].desc.Order
}

// newTxPriorityQueue returns a new transaction priority queue that
// reserves the passed amount of space for the elements. The new priority
// queue uses the txPQByFee compare function and is already initialized for
// use with heap.Push/Pop.
func newTxPriorityQueue(reserve int) *txPriorityQueue {
	pq := &txPriorityQueue{
		items: make([]*txPrioItem, 0, reserve),
	}
	pq.SetLessFunc(txPQByFee)
	return pq
}

// BlockTemplate houses a block that has yet to be solved along with the
// issuance context bound to it.
type BlockTemplate struct {
	// Block is a block that is ready to be solved by miners. Thus, it
	// is completely valid with the exception of satisfying the
	// proof-of-work requirement.
	Block *wire.MsgBlock

	// Signals is the congestion snapshot the subsidy was computed from.
	// It stays bound to the template through the proof-of-work search.
	Signals *signal.Snapshot

	// Height is the height at which the block template connects to the
	// chain.
	Height uint64

	// Subsidy is the newly minted portion of the coinbase.
	Subsidy uint64

	// FeesTotal is the aggregated effective fees the coinbase collects.
	FeesTotal uint64
}

// BlkTmplGenerator provides a type that can be used to generate block
// templates based on the pool contents, the chain state and the congestion
// signal cache.
type BlkTmplGenerator struct {
	params     *chaincfg.Params
	txSource   TxSource
	chain      *chain.Chain
	signals    *signal.Cache
	timeSource func() time.Time
}

// NewBlkTmplGenerator returns a new block template generator for the given
// sources.
func NewBlkTmplGenerator(params *chaincfg.Params, txSource TxSource,
	c *chain.Chain, signals *signal.Cache, timeSource func() time.Time) *BlkTmplGenerator {

	if timeSource == nil {
		timeSource = time.Now
	}
	return &BlkTmplGenerator{
		params:     params,
		txSource:   txSource,
		chain:      c,
		signals:    signals,
		timeSource: timeSource,
	}
}

// NewBlockTemplate returns a new block template that is ready to be solved
// using the transactions from the pool, paying the coinbase to the passed
// miner identity.
//
// The congestion snapshot is captured first, outside any chain lock, and
// rides along in the template: the subsidy the coinbase claims is computed
// from exactly that snapshot, so mempool churn or retargeting during the
// proof-of-work search cannot change it.
//
// Transactions are selected greedily by effective fee per kilobyte,
// skipping any whose sender could not cover the amount plus the
// block-scope effective fee given everything selected before it, until the
// maximum block weight is reached.
func (g *BlkTmplGenerator) NewBlockTemplate(miner string) (*BlockTemplate, error) {
	// Capture the signal snapshot before anything else; fetching blocks
	// on I/O and must not run under any lock.
	snapshot := g.signals.Current()

	tip := g.chain.Tip()
	nextHeight := tip.Height + 1
	requiredBits := g.chain.NextRequiredDifficulty()
	prevHash, err := hash.FromString(tip.Hash)
	if err != nil {
		return nil, err
	}

	sourceTxns := g.txSource.MiningDescs()
	priorityQueue := newTxPriorityQueue(len(sourceTxns))
	for _, txDesc := range sourceTxns {
		size := txDesc.Size()
		if size <= 0 {
			continue
		}
		heap.Push(priorityQueue, &txPrioItem{
			desc:     txDesc,
			feePerKB: txDesc.EffectiveFee * 1000 / uint64(size),
		})
	}

	log.Debugf("Considering %d transactions for inclusion to new block",
		priorityQueue.Len())

	// Selection state: spendable balances net of what earlier selected
	// transactions debit, last used nonce per sender, and the per-sender
	// counts that drive the block-scope policy multiplier.
	blockTxns := make([]*wire.Tx, 0, priorityQueue.Len()+1)
	spendable := make(map[string]uint64)
	lastNonce := make(map[string]uint64)
	senderSeen := make(map[string]int)
	blockSize := uint32(blockHeaderOverhead)
	var feesTotal uint64

	for priorityQueue.Len() > 0 {
		prioItem := heap.Pop(priorityQueue).(*txPrioItem)
		tx := prioItem.desc.Tx

		blockPlusTxSize := blockSize + uint32(prioItem.desc.Size())
		if blockPlusTxSize < blockSize || blockPlusTxSize >= g.params.MaxBlockWeight {
			log.Tracef("Skipping tx %s because it would exceed the max "+
				"block size", tx.TxID())
			continue
		}

		if _, ok := spendable[tx.Sender]; !ok {
			spendable[tx.Sender] = g.chain.Balance(tx.Sender)
			lastNonce[tx.Sender] = g.chain.AccountNonce(tx.Sender)
		}
		if tx.Nonce <= lastNonce[tx.Sender] {
			log.Tracef("Skipping tx %s because its nonce is not above "+
				"the sender's last used nonce", tx.TxID())
			continue
		}

		// The fee the coinbase collects is the block-scope effective
		// fee, which is exactly what connect validation recomputes.
		decision := guardian.ScoreTx(tx, &guardian.Context{
			RecentSends: senderSeen[tx.Sender],
			Outputs:     1,
		})
		if !decision.Allow {
			log.Tracef("Skipping tx %s because the block-scope policy "+
				"denies it", tx.TxID())
			continue
		}
		effectiveFee := tx.Fee * decision.FeeMultiplier

		debit := tx.Amount + effectiveFee
		if spendable[tx.Sender] < debit {
			log.Tracef("Skipping tx %s because the sender balance would "+
				"go negative", tx.TxID())
			continue
		}

		blockTxns = append(blockTxns, tx)
		spendable[tx.Sender] -= debit
		lastNonce[tx.Sender] = tx.Nonce
		senderSeen[tx.Sender]++
		blockSize = blockPlusTxSize
		feesTotal += effectiveFee

		log.Tracef("Adding tx %s (feePerKB %d)", tx.TxID(), prioItem.feePerKB)
	}

	subsidy := tokenomics.Subsidy(g.params, nextHeight, g.chain.MintedTotal(), snapshot)

	// The block timestamp must not go backward relative to the tip.
	timestamp := g.timeSource().Unix()
	if timestamp < tip.Timestamp {
		timestamp = tip.Timestamp
	}

	coinbase := wire.NewCoinbaseTx(miner, subsidy+feesTotal, timestamp)
	msgBlock := &wire.MsgBlock{
		Transactions: append([]*wire.Tx{coinbase}, blockTxns...),
	}
	msgBlock.Header = wire.BlockHeader{
		Version:    1,
		PrevBlock:  *prevHash,
		MerkleRoot: chain.BuildMerkleRoot(msgBlock),
		Timestamp:  timestamp,
		Bits:       requiredBits,
	}

	// Perform a full connect check (minus proof of work) on the created
	// block so a bad template is rejected before any work is spent on
	// it.
	if err := g.chain.CheckConnectBlockTemplate(msgBlock, snapshot); err != nil {
		return nil, err
	}

	log.Debugf("Created new block template (%d transactions, subsidy %d, "+
		"%d in fees, %d bytes, target bits %08x)", len(msgBlock.Transactions),
		subsidy, feesTotal, blockSize, requiredBits)

	return &BlockTemplate{
		Block:     msgBlock,
		Signals:   snapshot,
		Height:    nextHeight,
		Subsidy:   subsidy,
		FeesTotal: feesTotal,
	}, nil
}
