// Package node wires the chain engine, mempool, policy, tokenomics, signal
// collector and rewards ledger into the operational command surface any
// front-end consumes: submit, mine, balance, chain tail, ledger verify and
// emission status.
package node

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/chain"
	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/ledger"
	"github.com/ramianet/ramiad/mempool"
	"github.com/ramianet/ramiad/mining"
	"github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/tokenomics"
	"github.com/ramianet/ramiad/wire"
)

const (
	tokenStateFileName    = "token_state.json"
	rewardsLedgerFileName = "rewards_ledger.jsonl"
	mempoolSnapshotName   = "mempool.json"
	lockFileName          = "LOCK"
)

// Config is a descriptor for a node instance.
type Config struct {
	// Params identifies the network.
	Params *chaincfg.Params

	// DataDir is where everything is persisted.
	DataDir string

	// SigVerifier validates transaction signatures. When nil the
	// default verifier is used, which accepts any non-empty signature.
	SigVerifier chain.SigVerifier

	// Collector supplies congestion signals. When nil the node runs
	// with zero-pressure signals.
	Collector signal.Collector

	// TimeSource provides the wall clock. Tests substitute a fixed
	// clock. When nil, time.Now is used.
	TimeSource func() time.Time
}

// DefaultSigVerifier accepts any transaction carrying a non-empty
// signature. Real signature schemes are injected by the embedding
// application; the chain only ever sees the verdict.
func DefaultSigVerifier(tx *wire.Tx) bool {
	return len(tx.Signature) > 0
}

// Node owns one running instance of the chain core.
type Node struct {
	cfg Config

	chain     *chain.Chain
	txPool    *mempool.TxPool
	emission  *tokenomics.Engine
	rewards   *ledger.Ledger
	signals   *signal.Cache
	generator *mining.BlkTmplGenerator

	// miningMtx serializes mining cycles; miningHalted latches when the
	// audit trail can no longer be trusted and stays set until an
	// operator intervenes.
	miningMtx    sync.Mutex
	miningHalted bool
}

// New initializes a node in the given data directory: the genesis block
// and emission state are created on first run, and existing state is
// loaded and revalidated otherwise.
func New(cfg *Config) (*Node, error) {
	n := &Node{cfg: *cfg}
	if n.cfg.TimeSource == nil {
		n.cfg.TimeSource = time.Now
	}
	if n.cfg.SigVerifier == nil {
		n.cfg.SigVerifier = DefaultSigVerifier
	}
	if n.cfg.Collector == nil {
		n.cfg.Collector = &signal.Static{
			Snapshot: signal.ZeroSnapshot(n.cfg.Params.GenesisTimestamp),
		}
	}

	if err := os.MkdirAll(n.cfg.DataDir, 0700); err != nil {
		return nil, errors.Wrapf(err, "couldn't create data directory %s", n.cfg.DataDir)
	}
	if err := n.acquireDataDirLock(); err != nil {
		return nil, err
	}
	initialized := false
	defer func() {
		if !initialized {
			os.Remove(filepath.Join(n.cfg.DataDir, lockFileName))
		}
	}()

	var err error
	n.rewards, err = ledger.Open(filepath.Join(n.cfg.DataDir, rewardsLedgerFileName))
	if err != nil {
		return nil, err
	}

	n.emission, err = tokenomics.New(n.cfg.Params,
		filepath.Join(n.cfg.DataDir, tokenStateFileName))
	if err != nil {
		n.rewards.Close()
		return nil, err
	}

	n.chain, err = chain.New(&chain.Config{
		Params:      n.cfg.Params,
		DataDir:     n.cfg.DataDir,
		SigVerifier: n.cfg.SigVerifier,
		Emission:    n.emission,
		Ledger:      n.rewards,
		TimeSource:  n.cfg.TimeSource,
	})
	if err != nil {
		n.rewards.Close()
		return nil, err
	}

	n.txPool = mempool.New(&mempool.Config{
		Params:       n.cfg.Params,
		SigVerifier:  n.cfg.SigVerifier,
		FetchBalance: n.chain.Balance,
		FetchNonce:   n.chain.AccountNonce,
		BestHeight:   n.chain.Height,
		TimeSource:   n.cfg.TimeSource,
	})
	n.txPool.LoadSnapshot(filepath.Join(n.cfg.DataDir, mempoolSnapshotName))

	n.signals = signal.NewCache(n.cfg.Collector, n.cfg.Params.SignalTTL)
	n.generator = mining.NewBlkTmplGenerator(n.cfg.Params, n.txPool,
		n.chain, n.signals, func() time.Time { return n.cfg.TimeSource() })

	initialized = true
	log.Infof("Node initialized on %s at height %d", n.cfg.Params.Name,
		n.chain.Height())
	return n, nil
}

// acquireDataDirLock takes single-writer ownership of the data directory.
// A stale lock file from a crashed process must be removed by the operator
// before the node starts again.
func (n *Node) acquireDataDirLock() error {
	lockPath := filepath.Join(n.cfg.DataDir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return errors.Errorf("data directory %s is locked by another "+
				"node instance (remove %s if that instance is gone)",
				n.cfg.DataDir, lockPath)
		}
		return errors.Wrapf(err, "couldn't lock data directory %s", n.cfg.DataDir)
	}
	return f.Close()
}

// Close flushes the best-effort mempool snapshot, releases the ledger and
// drops the data directory lock.
func (n *Node) Close() error {
	snapshotPath := filepath.Join(n.cfg.DataDir, mempoolSnapshotName)
	if err := n.txPool.WriteSnapshot(snapshotPath); err != nil {
		log.Warnf("Couldn't write mempool snapshot: %s", err)
	}
	err := n.rewards.Close()
	if rmErr := os.Remove(filepath.Join(n.cfg.DataDir, lockFileName)); rmErr != nil {
		log.Warnf("Couldn't remove data directory lock: %s", rmErr)
	}
	return err
}

// SubmitTx runs a transaction through admission and, when accepted, parks
// it in the pool until a mining cycle picks it up.
func (n *Node) SubmitTx(tx *wire.Tx) (*mempool.AdmissionResult, error) {
	return n.txPool.ProcessTransaction(tx)
}

// Balance returns the confirmed balance of an account.
func (n *Node) Balance(addr string) uint64 {
	return n.chain.Balance(addr)
}

// ChainTail returns summaries of the last n blocks, oldest first.
func (n *Node) ChainTail(count int) []*chain.BlockSummary {
	return n.chain.Tail(count)
}

// Tip returns the chain tip summary.
func (n *Node) Tip() *chain.BlockSummary {
	return n.chain.Tip()
}

// MineResult reports one successful mining cycle.
type MineResult struct {
	// Block summarizes the accepted block.
	Block *chain.BlockSummary `json:"block"`

	// Subsidy and FeesTotal break the coinbase down.
	Subsidy   uint64 `json:"subsidy"`
	FeesTotal uint64 `json:"fees_total"`

	// LedgerEntry is the audit record emitted for the block.
	LedgerEntry *ledger.Entry `json:"ledger_entry"`
}

// Mine runs one full mining cycle: capture signals, build a template from
// the pool, search for a proof-of-work solution, and append the solved
// block. The context cancels the search cooperatively.
func (n *Node) Mine(ctx context.Context, miner string) (*MineResult, error) {
	n.miningMtx.Lock()
	defer n.miningMtx.Unlock()

	if n.miningHalted {
		return nil, errors.New("mining is halted pending operator " +
			"intervention: the rewards ledger failed verification")
	}
	if miner == "" {
		return nil, errors.New("a miner identity is required")
	}

	template, err := n.generator.NewBlockTemplate(miner)
	if err != nil {
		return nil, err
	}

	if err := mining.SolveBlock(ctx, template); err != nil {
		return nil, err
	}

	entry, err := n.chain.ProcessBlock(template.Block, template.Signals)
	if err != nil {
		if isLedgerFailure(err) {
			n.miningHalted = true
			log.Criticalf("Halting mining: %s", err)
		}
		return nil, err
	}

	n.txPool.RemoveForBlock(template.Block)

	return &MineResult{
		Block:       n.chain.Tip(),
		Subsidy:     template.Subsidy,
		FeesTotal:   template.FeesTotal,
		LedgerEntry: entry,
	}, nil
}

// isLedgerFailure reports whether err means the audit trail can no longer
// be trusted to match the chain.
func isLedgerFailure(err error) bool {
	var gap chain.AuditGapError
	if errors.As(err, &gap) {
		return true
	}
	var corruption ledger.CorruptionError
	return errors.As(err, &corruption)
}

// VerifyLedger re-reads the rewards ledger from disk and verifies the
// whole hash chain. A hash-chain break halts mining until an operator
// intervenes.
func (n *Node) VerifyLedger() (*ledger.VerifyReport, error) {
	report, err := ledger.Verify(filepath.Join(n.cfg.DataDir, rewardsLedgerFileName))
	if err != nil {
		return nil, err
	}
	if !report.OK && !report.TrailingCorruption {
		n.miningMtx.Lock()
		n.miningHalted = true
		n.miningMtx.Unlock()
		log.Criticalf("Rewards ledger verification failed at seq %d "+
			"(offset %d): %s", report.FirstBadSeq, report.FirstBadOffset,
			report.Reason)
	}
	return report, nil
}

// LedgerTail returns the last n rewards ledger entries, oldest first.
func (n *Node) LedgerTail(count int) ([]*ledger.Entry, error) {
	return ledger.Tail(filepath.Join(n.cfg.DataDir, rewardsLedgerFileName), count)
}

// EmissionStatus reports the emission state together with per-bucket
// vesting progress at the current time.
type EmissionStatus struct {
	State   tokenomics.EmissionState  `json:"state"`
	Buckets []tokenomics.BucketStatus `json:"buckets"`

	// NextSubsidy is what the next block would mint under the current
	// signal snapshot.
	NextSubsidy uint64 `json:"next_subsidy"`
}

// EmissionStatus returns the emission engine state, bucket vesting status
// and the subsidy the next block would claim.
func (n *Node) EmissionStatus() *EmissionStatus {
	snapshot := n.signals.Current()
	return &EmissionStatus{
		State:       n.emission.State(),
		Buckets:     n.emission.Buckets(n.cfg.TimeSource().Unix()),
		NextSubsidy: tokenomics.Subsidy(n.cfg.Params, n.chain.Height()+1, n.chain.MintedTotal(), snapshot),
	}
}
