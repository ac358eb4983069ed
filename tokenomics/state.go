package tokenomics

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/signal"
	"github.com/ramianet/ramiad/util/atomicfile"
)

// EmissionState is the persistent record of the emission schedule. The
// engine exclusively owns the state file; every mutation is written through
// atomically.
type EmissionState struct {
	EmissionPoolTotal uint64 `json:"emission_pool_total"`
	RemainingPool     uint64 `json:"remaining_pool"`
	MintedTotal       uint64 `json:"minted_total"`
	EpochLengthSec    int64  `json:"epoch_length_sec"`
	GenesisTs         int64  `json:"genesis_ts"`
	LastEmissionTs    int64  `json:"last_emission_ts"`
	LastReward        uint64 `json:"last_reward"`
}

// Engine owns the emission state and answers subsidy and vesting queries.
// A single Engine instance is handed explicitly to every caller that needs
// it; there is no package-level mutable state.
type Engine struct {
	mtx    sync.RWMutex
	params *chaincfg.Params
	path   string
	state  EmissionState
}

// New creates an emission engine persisting to path. When the state file
// already exists its contents are loaded; otherwise a fresh genesis state
// is written.
func New(params *chaincfg.Params, path string) (*Engine, error) {
	e := &Engine{
		params: params,
		path:   path,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		e.state = EmissionState{
			EmissionPoolTotal: params.EmissionPoolTotal,
			RemainingPool:     params.EmissionPoolTotal,
			MintedTotal:       0,
			EpochLengthSec:    params.EpochLengthSec,
			GenesisTs:         params.GenesisTimestamp,
		}
		if err := e.persist(); err != nil {
			return nil, err
		}
		log.Infof("Initialized emission state: pool %d over %d-second epochs",
			e.state.EmissionPoolTotal, e.state.EpochLengthSec)

	case err != nil:
		return nil, errors.Wrapf(err, "couldn't read emission state %s", path)

	default:
		if err := json.Unmarshal(data, &e.state); err != nil {
			return nil, errors.Wrapf(err, "couldn't decode emission state %s", path)
		}
		if e.state.MintedTotal > params.TotalSupply {
			return nil, errors.Errorf("emission state claims %d minted, "+
				"above the %d supply cap", e.state.MintedTotal, params.TotalSupply)
		}
	}

	return e, nil
}

// persist writes the state through atomically. Callers must hold the write
// lock.
func (e *Engine) persist() error {
	data, err := json.MarshalIndent(&e.state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "couldn't marshal emission state")
	}
	return atomicfile.Write(e.path, append(data, '\n'), 0600)
}

// State returns a copy of the current emission state.
func (e *Engine) State() EmissionState {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.state
}

// Subsidy computes the subsidy for a block at the given height using the
// engine's current minted total and the given congestion snapshot.
func (e *Engine) Subsidy(height uint64, signals *signal.Snapshot) uint64 {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return Subsidy(e.params, height, e.state.MintedTotal, signals)
}

// Apply advances the emission state after a block minting blockMinted has
// been durably appended: the minted total grows, the emission pool shrinks,
// and the last-reward markers move. The new state is written atomically
// before Apply returns.
func (e *Engine) Apply(blockMinted uint64, now int64) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if e.state.MintedTotal+blockMinted > e.params.TotalSupply {
		return errors.Errorf("applying %d minted would breach the %d supply cap",
			blockMinted, e.params.TotalSupply)
	}

	prev := e.state
	e.state.MintedTotal += blockMinted
	if blockMinted > e.state.RemainingPool {
		e.state.RemainingPool = 0
	} else {
		e.state.RemainingPool -= blockMinted
	}
	e.state.LastReward = blockMinted
	e.state.LastEmissionTs = now

	if err := e.persist(); err != nil {
		e.state = prev
		return err
	}

	log.Debugf("Emission advanced: minted %d, total %d, pool remaining %d",
		blockMinted, e.state.MintedTotal, e.state.RemainingPool)
	return nil
}
