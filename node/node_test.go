package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/mempool"
	"github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// testClock is a fixed time source that tests advance explicitly.
type testClock struct {
	now int64
}

func (c *testClock) time() time.Time {
	return time.Unix(c.now, 0)
}

func (c *testClock) advance(seconds int64) {
	c.now += seconds
}

// newTestNode creates a node on the simulation network in a temp dir with
// the given collector (nil for zero pressure) and a deterministic clock.
func newTestNode(t *testing.T, dataDir string, collector signal.Collector) (*Node, *testClock) {
	t.Helper()

	clock := &testClock{now: chaincfg.SimNetParams.GenesisTimestamp + 100}
	n, err := New(&Config{
		Params:     &chaincfg.SimNetParams,
		DataDir:    dataDir,
		Collector:  collector,
		TimeSource: clock.time,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n, clock
}

// transfer builds a signed transfer transaction.
func transfer(clock *testClock, sender, recipient string, amount, fee, nonce uint64) *wire.Tx {
	return &wire.Tx{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Timestamp: clock.now,
		Nonce:     nonce,
		Signature: []byte{0x01},
	}
}

// TestGenesisAndFirstBlock walks the first end-to-end scenario: a fresh
// node mines one empty block under zero pressure and every subsystem lands
// on the expected numbers.
func TestGenesisAndFirstBlock(t *testing.T) {
	n, clock := newTestNode(t, t.TempDir(), nil)

	tip := n.Tip()
	if tip.Height != 0 {
		t.Fatalf("fresh node tip height: got %d, want 0", tip.Height)
	}

	clock.advance(60)
	result, err := n.Mine(context.Background(), "miner_a")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if result.Subsidy != 19 {
		t.Fatalf("subsidy: got %d, want 19", result.Subsidy)
	}
	if result.FeesTotal != 0 {
		t.Fatalf("fees: got %d, want 0", result.FeesTotal)
	}
	if got := n.Balance("miner_a"); got != 19 {
		t.Fatalf("miner balance: got %d, want 19", got)
	}

	status := n.EmissionStatus()
	if status.State.MintedTotal != 19 {
		t.Fatalf("minted total: got %d, want 19", status.State.MintedTotal)
	}
	if status.State.RemainingPool != 55_000_000-19 {
		t.Fatalf("remaining pool: got %d, want %d",
			status.State.RemainingPool, 55_000_000-19)
	}

	entry := result.LedgerEntry
	if entry.Seq != 0 {
		t.Fatalf("ledger seq: got %d, want 0", entry.Seq)
	}
	if entry.PrevHash != hash.ZeroHash.String() {
		t.Fatalf("ledger prev hash: got %s, want all zeros", entry.PrevHash)
	}
	if entry.Subsidy != 19 || entry.BlockHeight != 1 || entry.Miner != "miner_a" {
		t.Fatalf("ledger entry: %+v", entry)
	}

	report, err := n.VerifyLedger()
	if err != nil {
		t.Fatalf("VerifyLedger: %v", err)
	}
	if !report.OK || report.Entries != 1 {
		t.Fatalf("VerifyLedger: ok=%v entries=%d", report.OK, report.Entries)
	}
}

// TestPressureBumpsSubsidy walks the congestion scenario: a fast-fee
// signal of 100 yields a 1.5x multiplier on the baseline subsidy.
func TestPressureBumpsSubsidy(t *testing.T) {
	collector := &signal.Static{Snapshot: &signal.Snapshot{
		FeeFast:    100,
		SourceTag:  "test",
		CapturedAt: chaincfg.SimNetParams.GenesisTimestamp,
	}}
	n, clock := newTestNode(t, t.TempDir(), collector)

	clock.advance(60)
	result, err := n.Mine(context.Background(), "miner_a")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	// baseline 19, multiplier 1.5, floored.
	if result.Subsidy != 28 {
		t.Fatalf("pressured subsidy: got %d, want 28", result.Subsidy)
	}

	// The snapshot digest must be recorded in the audit entry.
	if result.LedgerEntry.SignalsDigest != collector.Snapshot.Digest().String() {
		t.Fatalf("signals digest mismatch: ledger has %s",
			result.LedgerEntry.SignalsDigest)
	}
}

// TestMempoolPriorityOrdering walks the fee-priority scenario: of two
// nearly equally sized transfers, the higher-fee one is mined first in the block
// body.
func TestMempoolPriorityOrdering(t *testing.T) {
	n, clock := newTestNode(t, t.TempDir(), nil)
	ctx := context.Background()

	// Fund alice with one block and bob with three so both can cover
	// their spends.
	clock.advance(60)
	if _, err := n.Mine(ctx, "alice"); err != nil {
		t.Fatalf("Mine for alice: %v", err)
	}
	for i := 0; i < 3; i++ {
		clock.advance(60)
		if _, err := n.Mine(ctx, "bob"); err != nil {
			t.Fatalf("Mine for bob: %v", err)
		}
	}

	txA := transfer(clock, "alice", "dest", 1, 10, 1)
	txB := transfer(clock, "bob", "dest", 1, 50, 1)
	if _, err := n.SubmitTx(txA); err != nil {
		t.Fatalf("SubmitTx A: %v", err)
	}
	if _, err := n.SubmitTx(txB); err != nil {
		t.Fatalf("SubmitTx B: %v", err)
	}

	clock.advance(60)
	result, err := n.Mine(ctx, "carol")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if result.FeesTotal != 60 {
		t.Fatalf("fees total: got %d, want 60", result.FeesTotal)
	}

	block, err := n.chain.BlockByHeight(result.Block.Height)
	if err != nil {
		t.Fatalf("BlockByHeight: %v", err)
	}
	if len(block.Transactions) != 3 {
		t.Fatalf("block tx count: got %d, want 3", len(block.Transactions))
	}
	if block.Transactions[1].Sender != "bob" {
		t.Fatalf("first mined transfer is from %s, want bob (higher fee)",
			block.Transactions[1].Sender)
	}
	if block.Transactions[2].Sender != "alice" {
		t.Fatalf("second mined transfer is from %s, want alice",
			block.Transactions[2].Sender)
	}

	// Conservation: everything on the books traces back to subsidies.
	minted := n.chain.MintedTotal()
	var total uint64
	for _, who := range []string{"alice", "bob", "carol", "dest"} {
		total += n.Balance(who)
	}
	if total != minted {
		t.Fatalf("conservation: balances sum to %d, minted %d", total, minted)
	}

	// The included transactions left the pool.
	if n.txPool.Count() != 0 {
		t.Fatalf("pool count after mine: got %d, want 0", n.txPool.Count())
	}
}

// TestPolicyDenyAtSubmit walks the guardian deny scenario through the
// node's submit surface.
func TestPolicyDenyAtSubmit(t *testing.T) {
	n, clock := newTestNode(t, t.TempDir(), nil)

	clock.advance(60)
	if _, err := n.Mine(context.Background(), "spammer"); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	tx := transfer(clock, "spammer", "victim", 1, 0, 1)
	tx.Memo = "FREE MONEY airdrop claim http://x giveaway"
	_, err := n.SubmitTx(tx)
	if code, ok := mempool.ExtractRejectCode(err); !ok || code != mempool.RejectPolicy {
		t.Fatalf("SubmitTx: got %v, want RejectPolicy", err)
	}
}

// TestRestartRebuildsState mines a few blocks, deletes the state mirror,
// and verifies a fresh node instance rebuilds identical state from the
// block files alone.
func TestRestartRebuildsState(t *testing.T) {
	dataDir := t.TempDir()
	n, clock := newTestNode(t, dataDir, nil)
	ctx := context.Background()

	clock.advance(60)
	if _, err := n.Mine(ctx, "alice"); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	clock.advance(60)
	if _, err := n.Mine(ctx, "bob"); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if _, err := n.SubmitTx(transfer(clock, "alice", "bob", 5, 10, 1)); err != nil {
		t.Fatalf("SubmitTx: %v", err)
	}
	clock.advance(60)
	if _, err := n.Mine(ctx, "alice"); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	wantTip := n.Tip()
	wantAlice := n.Balance("alice")
	wantBob := n.Balance("bob")
	wantMinted := n.chain.MintedTotal()
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Remove the mirror; the block files are the source of truth.
	if err := os.Remove(filepath.Join(dataDir, "state.json")); err != nil {
		t.Fatalf("Remove state.json: %v", err)
	}

	reopened, _ := newTestNode(t, dataDir, nil)
	if got := reopened.Tip(); got.Height != wantTip.Height || got.Hash != wantTip.Hash {
		t.Fatalf("reopened tip %+v, want %+v", got, wantTip)
	}
	if got := reopened.Balance("alice"); got != wantAlice {
		t.Fatalf("reopened alice balance: got %d, want %d", got, wantAlice)
	}
	if got := reopened.Balance("bob"); got != wantBob {
		t.Fatalf("reopened bob balance: got %d, want %d", got, wantBob)
	}
	if got := reopened.chain.MintedTotal(); got != wantMinted {
		t.Fatalf("reopened minted total: got %d, want %d", got, wantMinted)
	}

	report, err := reopened.VerifyLedger()
	if err != nil {
		t.Fatalf("VerifyLedger: %v", err)
	}
	if !report.OK {
		t.Fatalf("ledger not ok after restart: %+v", report)
	}

	// The state mirror is rewritten during replay.
	if _, err := os.Stat(filepath.Join(dataDir, "state.json")); err != nil {
		t.Fatalf("state.json was not rebuilt: %v", err)
	}
}

// TestLedgerTamperHaltsMining tampers with the on-disk ledger and checks
// that verification fails and mining refuses to continue.
func TestLedgerTamperHaltsMining(t *testing.T) {
	dataDir := t.TempDir()
	n, clock := newTestNode(t, dataDir, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		clock.advance(60)
		if _, err := n.Mine(ctx, "miner_a"); err != nil {
			t.Fatalf("Mine #%d: %v", i, err)
		}
	}

	ledgerPath := filepath.Join(dataDir, "rewards_ledger.jsonl")
	data, err := os.ReadFile(ledgerPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	tampered := []byte(string(data))
	for i := range tampered {
		if tampered[i] == '9' {
			tampered[i] = '8'
			break
		}
	}
	if err := os.WriteFile(ledgerPath, tampered, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err := n.VerifyLedger()
	if err != nil {
		t.Fatalf("VerifyLedger: %v", err)
	}
	if report.OK {
		t.Fatal("VerifyLedger accepted a tampered ledger")
	}

	clock.advance(60)
	if _, err := n.Mine(ctx, "miner_a"); err == nil {
		t.Fatal("Mine continued after ledger verification failed")
	}
}

// TestMiningCancellation checks the cooperative cancellation path: a
// pre-canceled context stops the search before any block is produced.
func TestMiningCancellation(t *testing.T) {
	n, clock := newTestNode(t, t.TempDir(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock.advance(60)
	if _, err := n.Mine(ctx, "miner_a"); err == nil {
		t.Fatal("Mine succeeded with a canceled context")
	}
	if n.Tip().Height != 0 {
		t.Fatalf("canceled mine advanced the chain to %d", n.Tip().Height)
	}
}
