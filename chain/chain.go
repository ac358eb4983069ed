// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain implements the chain engine: block and transaction
// validation, proof-of-work rules, and the account-balance state derived
// from applying the chain in order from genesis.
package chain

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/ledger"
	"github.com/ramianet/ramiad/tokenomics"
	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// SigVerifier checks a transaction's opaque signature bytes. The chain
// treats signatures as a black box; concrete verification is injected.
type SigVerifier func(tx *wire.Tx) bool

// Config is a descriptor which specifies the chain instance configuration.
type Config struct {
	// Params identifies the network the chain is associated with.
	Params *chaincfg.Params

	// DataDir is the directory the chain persists blocks and state
	// under.
	DataDir string

	// SigVerifier validates transaction signatures. It must not be nil.
	SigVerifier SigVerifier

	// Emission is the tokenomics engine consulted for subsidies and
	// advanced after every accepted block.
	Emission *tokenomics.Engine

	// Ledger is the rewards ledger an audit entry is appended to for
	// every accepted block.
	Ledger *ledger.Ledger

	// TimeSource provides the wall clock for ledger entry timestamps.
	// Tests substitute a fixed clock.
	TimeSource func() time.Time
}

// blockNode represents one accepted block within the chain index. The
// index keeps only the summary fields validation and retargeting need;
// full blocks live in their files.
type blockNode struct {
	height    uint64
	hash      hash.Hash
	prevHash  hash.Hash
	timestamp int64
	bits      uint32
	numTxs    int
}

// Chain provides functions for working with the chain: accepting blocks,
// answering balance queries, and listing block summaries.
//
// The chain is the exclusive owner of the block list and the account
// state. A single writer mutates it under the exclusive lock; readers
// share the read lock.
type Chain struct {
	mtx    sync.RWMutex
	cfg    Config
	params *chaincfg.Params

	nodes    []*blockNode
	index    map[hash.Hash]uint64
	balances map[string]uint64
	nonces   map[string]uint64

	// mintedTotal is the sum of the subsidy portions of all accepted
	// coinbases. Fees recycle existing balance and do not count.
	mintedTotal uint64
}

// New constructs a chain instance for the given configuration. When the
// data directory holds existing blocks they are replayed to rebuild the
// state; otherwise the genesis block is written.
func New(config *Config) (*Chain, error) {
	if config.SigVerifier == nil {
		return nil, errors.New("chain requires a signature verifier")
	}
	if config.TimeSource == nil {
		config.TimeSource = time.Now
	}

	c := &Chain{
		cfg:      *config,
		params:   config.Params,
		index:    make(map[hash.Hash]uint64),
		balances: make(map[string]uint64),
		nonces:   make(map[string]uint64),
	}

	if err := c.initChainState(); err != nil {
		return nil, err
	}
	return c, nil
}

// tip returns the current tip node. The chain always has at least the
// genesis node. Callers must hold the lock.
func (c *Chain) tip() *blockNode {
	return c.nodes[len(c.nodes)-1]
}

// Height returns the height of the chain tip.
func (c *Chain) Height() uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.tip().height
}

// TipHash returns the hash of the chain tip.
func (c *Chain) TipHash() hash.Hash {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.tip().hash
}

// Balance returns the current balance of the given account identity.
// Unknown identities have a zero balance.
func (c *Chain) Balance(addr string) uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.balances[addr]
}

// AccountNonce returns the last accepted nonce for the given sender, or
// zero if the sender has never transacted.
func (c *Chain) AccountNonce(addr string) uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.nonces[addr]
}

// MintedTotal returns the sum of subsidy outputs across all accepted
// blocks.
func (c *Chain) MintedTotal() uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.mintedTotal
}

// NextRequiredDifficulty returns the difficulty bits the next block must
// carry.
func (c *Chain) NextRequiredDifficulty() uint32 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.calcNextRequiredDifficulty(c.tip())
}

// BlockSummary describes one accepted block.
type BlockSummary struct {
	Height    uint64 `json:"height"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prev_hash"`
	Timestamp int64  `json:"timestamp"`
	Bits      uint32 `json:"bits"`
	NumTxs    int    `json:"num_txs"`
}

// summary converts a block node into its external summary form. Callers
// must hold the lock.
func (n *blockNode) summary() *BlockSummary {
	return &BlockSummary{
		Height:    n.height,
		Hash:      n.hash.String(),
		PrevHash:  n.prevHash.String(),
		Timestamp: n.timestamp,
		Bits:      n.bits,
		NumTxs:    n.numTxs,
	}
}

// Tip returns a summary of the chain tip.
func (c *Chain) Tip() *BlockSummary {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.tip().summary()
}

// Range returns summaries for up to n blocks starting at the given height.
func (c *Chain) Range(from uint64, n int) []*BlockSummary {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	summaries := make([]*BlockSummary, 0, n)
	for h := from; h < uint64(len(c.nodes)) && len(summaries) < n; h++ {
		summaries = append(summaries, c.nodes[h].summary())
	}
	return summaries
}

// Tail returns summaries for the last n blocks, oldest first.
func (c *Chain) Tail(n int) []*BlockSummary {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	start := 0
	if len(c.nodes) > n {
		start = len(c.nodes) - n
	}
	summaries := make([]*BlockSummary, 0, n)
	for _, node := range c.nodes[start:] {
		summaries = append(summaries, node.summary())
	}
	return summaries
}
