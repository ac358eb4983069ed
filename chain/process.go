// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"os"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/guardian"
	"github.com/ramianet/ramiad/ledger"
	"github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/wire"
)

// stateUndo captures the prior values of everything a commit touches so a
// failed append can be rolled back without replaying the chain.
type stateUndo struct {
	balances    map[string]uint64
	nonces      map[string]uint64
	mintedTotal uint64
	numNodes    int
}

// captureUndo records the current values of the accounts a connect result
// will touch. Callers must hold the chain lock.
func (c *Chain) captureUndo(result *connectResult) *stateUndo {
	undo := &stateUndo{
		balances:    make(map[string]uint64, len(result.balances)),
		nonces:      make(map[string]uint64, len(result.nonces)),
		mintedTotal: c.mintedTotal,
		numNodes:    len(c.nodes),
	}
	for addr := range result.balances {
		undo.balances[addr] = c.balances[addr]
	}
	for addr := range result.nonces {
		undo.nonces[addr] = c.nonces[addr]
	}
	return undo
}

// applyUndo restores the captured state. Callers must hold the chain lock.
func (c *Chain) applyUndo(undo *stateUndo) {
	for addr, balance := range undo.balances {
		if balance == 0 {
			delete(c.balances, addr)
			continue
		}
		c.balances[addr] = balance
	}
	for addr, nonce := range undo.nonces {
		if nonce == 0 {
			delete(c.nonces, addr)
			continue
		}
		c.nonces[addr] = nonce
	}
	c.mintedTotal = undo.mintedTotal
	node := c.nodes[len(c.nodes)-1]
	c.nodes = c.nodes[:undo.numNodes]
	delete(c.index, node.hash)
}

// CheckConnectBlock validates block as the next block without mutating any
// state.
func (c *Chain) CheckConnectBlock(block *wire.MsgBlock, signals *signal.Snapshot) error {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	_, err := c.checkConnectBlock(block, signals, BFNone)
	return err
}

// CheckConnectBlockTemplate validates an unsolved block template against
// everything except the proof of work, so a bad template is rejected
// before any work is spent on it.
func (c *Chain) CheckConnectBlockTemplate(block *wire.MsgBlock, signals *signal.Snapshot) error {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	_, err := c.checkConnectBlock(block, signals, BFNoPoWCheck)
	return err
}

// ProcessBlock validates block as the next block of the chain and, when it
// passes, makes it durable: the block file is staged and renamed into
// place, the state mirror is rewritten, the emission state advances, and
// the rewards ledger entry is appended last so the audit trail only ever
// describes durable blocks.
//
// Failures before durability leave no trace. A storage failure mid-commit
// rolls the in-memory state back and removes the staged block file, so the
// operation is all-or-nothing.
func (c *Chain) ProcessBlock(block *wire.MsgBlock, signals *signal.Snapshot) (*ledger.Entry, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	result, err := c.checkConnectBlock(block, signals, BFNone)
	if err != nil {
		return nil, err
	}

	height := c.tip().height + 1
	if err := c.writeBlockFile(block, height); err != nil {
		return nil, err
	}

	undo := c.captureUndo(result)
	c.commitConnectResult(block, result)

	if err := c.persistState(); err != nil {
		c.applyUndo(undo)
		if rmErr := os.Remove(blockFilePath(c.cfg.DataDir, height)); rmErr != nil {
			log.Errorf("Couldn't remove staged block file for height %d: %s",
				height, rmErr)
		}
		return nil, errors.Wrapf(err, "couldn't persist state for block %d", height)
	}

	if err := c.cfg.Emission.Apply(result.subsidy, block.Header.Timestamp); err != nil {
		c.applyUndo(undo)
		if rmErr := os.Remove(blockFilePath(c.cfg.DataDir, height)); rmErr != nil {
			log.Errorf("Couldn't remove staged block file for height %d: %s",
				height, rmErr)
		}
		if stErr := c.persistState(); stErr != nil {
			log.Errorf("Couldn't restore state mirror after failed emission "+
				"apply: %s", stErr)
		}
		return nil, errors.Wrapf(err, "couldn't advance emission state for block %d", height)
	}

	entry, err := c.cfg.Ledger.Append(&ledger.Entry{
		BlockHeight:           height,
		Miner:                 block.Transactions[0].Recipient,
		Subsidy:               result.subsidy,
		FeesTotal:             result.feesTotal,
		SignalsDigest:         signals.Digest().String(),
		PolicyDecisionsDigest: guardian.DigestDecisions(result.decisions).String(),
		Timestamp:             c.cfg.TimeSource().Unix(),
	})
	if err != nil {
		// The block and emission state are already durable; the audit
		// trail is behind by one entry. This is surfaced as fatal so
		// the operator intervenes before any further mining.
		return nil, AuditGapError{Height: height, Err: err}
	}

	log.Infof("Accepted block %d (%s): %d txs, subsidy %d, fees %d",
		height, block.BlockHash(), len(block.Transactions),
		result.subsidy, result.feesTotal)
	return entry, nil
}
