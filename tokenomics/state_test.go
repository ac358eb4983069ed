package tokenomics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ramianet/ramiad/chaincfg"
)

// newTestEngine creates an engine persisting under a temp dir.
func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token_state.json")
	engine, err := New(&chaincfg.SimNetParams, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine, path
}

// TestNewInitializesState tests the genesis emission state.
func TestNewInitializesState(t *testing.T) {
	engine, path := newTestEngine(t)

	state := engine.State()
	if state.EmissionPoolTotal != 55_000_000 {
		t.Fatalf("pool total: got %d, want 55000000", state.EmissionPoolTotal)
	}
	if state.RemainingPool != state.EmissionPoolTotal {
		t.Fatalf("remaining pool: got %d, want %d",
			state.RemainingPool, state.EmissionPoolTotal)
	}
	if state.MintedTotal != 0 {
		t.Fatalf("minted total: got %d, want 0", state.MintedTotal)
	}
	if state.EpochLengthSec != 86_400 {
		t.Fatalf("epoch length: got %d, want 86400", state.EpochLengthSec)
	}

	// The state file must exist and decode to the same state.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var persisted EmissionState
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if persisted != state {
		t.Fatalf("persisted state %+v differs from in-memory %+v",
			persisted, state)
	}
}

// TestApplyAdvancesAndPersists tests that Apply moves the counters, floors
// the pool at zero, and survives a reload.
func TestApplyAdvancesAndPersists(t *testing.T) {
	engine, path := newTestEngine(t)

	if err := engine.Apply(19, 1735689760); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	state := engine.State()
	if state.MintedTotal != 19 || state.RemainingPool != 55_000_000-19 {
		t.Fatalf("after apply: minted %d remaining %d", state.MintedTotal,
			state.RemainingPool)
	}
	if state.LastReward != 19 || state.LastEmissionTs != 1735689760 {
		t.Fatalf("after apply: last reward %d at %d", state.LastReward,
			state.LastEmissionTs)
	}

	// Reload from disk and confirm the applied state round-tripped.
	reloaded, err := New(&chaincfg.SimNetParams, path)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	if reloaded.State() != state {
		t.Fatalf("reloaded state %+v differs from %+v", reloaded.State(), state)
	}
}

// TestApplyRefusesSupplyBreach tests that Apply cannot mint past the total
// supply cap.
func TestApplyRefusesSupplyBreach(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.Apply(100_000_000, 1); err != nil {
		t.Fatalf("Apply full supply: %v", err)
	}
	if err := engine.Apply(1, 2); err == nil {
		t.Fatal("Apply accepted minting past the supply cap")
	}
}

// TestSupplyCapScenario walks the literal end-of-supply scenario: preload
// the state to ten units under the cap, mine one clamped block, then
// confirm the next subsidy is zero.
func TestSupplyCapScenario(t *testing.T) {
	params := &chaincfg.SimNetParams
	path := filepath.Join(t.TempDir(), "token_state.json")

	preload := EmissionState{
		EmissionPoolTotal: params.EmissionPoolTotal,
		RemainingPool:     10,
		MintedTotal:       99_999_990,
		EpochLengthSec:    params.EpochLengthSec,
		GenesisTs:         params.GenesisTimestamp,
	}
	data, err := json.Marshal(&preload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	engine, err := New(params, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	height := params.TargetBlocks() + 1
	subsidy := engine.Subsidy(height, zeroPressure())
	if subsidy != 10 {
		t.Fatalf("clamped subsidy: got %d, want 10", subsidy)
	}

	if err := engine.Apply(subsidy, 1735689760); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	state := engine.State()
	if state.MintedTotal != 100_000_000 {
		t.Fatalf("minted total: got %d, want 100000000", state.MintedTotal)
	}
	if state.RemainingPool != 0 {
		t.Fatalf("remaining pool: got %d, want 0", state.RemainingPool)
	}

	if got := engine.Subsidy(height+1, zeroPressure()); got != 0 {
		t.Fatalf("subsidy after cap: got %d, want 0", got)
	}
}
