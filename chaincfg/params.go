// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"
)

// These variables are the chain proof-of-work limit parameters for each
// default network.
var (
	// bigOne is 1 represented as a big.Int. It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a block can have
	// for the main network.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// simNetPowLimit is the highest proof of work value a block can have
	// for the simulation test network. It is the value 2^255 - 1, which
	// makes nonce searches all but instant.
	simNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

// Constants shared by all networks.
const (
	// SecondsPerYear is the number of seconds in a 365-day year, used to
	// pace the supply-capped emission schedule.
	SecondsPerYear = 365 * 24 * 60 * 60

	// SecondsPerMonth is the number of seconds in a 30-day month, used by
	// the allocation bucket vesting schedule.
	SecondsPerMonth = 30 * 24 * 60 * 60
)

// AllocationBucket describes one fixed genesis allocation and its vesting
// policy. Buckets with a zero Cliff and zero Duration vest immediately.
type AllocationBucket struct {
	// Name identifies the bucket.
	Name string

	// Total is the full bucket allocation in the smallest unit.
	Total uint64

	// CliffMonths is the number of months before any of the bucket
	// vests.
	CliffMonths uint64

	// DurationMonths is the number of months over which the bucket vests
	// linearly once the cliff has passed.
	DurationMonths uint64

	// FromEmission marks buckets that are not paid out by vesting math
	// but sourced from the block-subsidy emission pool instead.
	FromEmission bool
}

// Params defines a network by its parameters. These parameters may be used
// by applications to differentiate networks as well as addresses and keys
// for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// TotalSupply is the hard cap on everything that can ever be minted,
	// in the smallest unit.
	TotalSupply uint64

	// EmissionPoolTotal is the portion of TotalSupply issued
	// algorithmically through block subsidies.
	EmissionPoolTotal uint64

	// EpochLengthSec is the emission epoch length in seconds.
	EpochLengthSec int64

	// TargetYears is the number of years the emission schedule aims to
	// spread the remaining supply over.
	TargetYears uint64

	// TargetBlockTime is the desired average time between blocks.
	TargetBlockTime time.Duration

	// RetargetInterval is the number of blocks between difficulty
	// retargets.
	RetargetInterval uint64

	// RetargetAdjustmentFactor is the clamp on a single retarget step:
	// the new target may not move by more than this factor in either
	// direction.
	RetargetAdjustmentFactor int64

	// PowLimit defines the highest allowed proof of work value for a
	// block as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// MinSubsidy and MaxSubsidy clamp the per-block subsidy.
	MinSubsidy uint64
	MaxSubsidy uint64

	// TailEmission is the subsidy reported once the supply cap is
	// reached. Block validation still rejects any subsidy that pushes the
	// minted total past TotalSupply, so only zero is accepted there.
	TailEmission uint64

	// MaxBlockWeight is the maximum serialized size of a block in bytes.
	MaxBlockWeight uint32

	// MaxMempoolTx is the mempool size cap. When full, the entry with
	// the lowest effective fee per byte is evicted.
	MaxMempoolTx int

	// SignalTTL is how long a fetched congestion-signal snapshot stays
	// fresh before the collector is consulted again.
	SignalTTL time.Duration

	// SignalTimeout is the hard deadline on a single signal fetch.
	SignalTimeout time.Duration

	// GenesisTimestamp is the unix time of the genesis block and the
	// start of every vesting schedule.
	GenesisTimestamp int64

	// Buckets is the fixed genesis allocation table. Totals sum to
	// TotalSupply; buckets marked FromEmission share EmissionPoolTotal.
	Buckets []AllocationBucket
}

// TargetBlocks returns the total number of blocks the emission schedule is
// paced over.
func (p *Params) TargetBlocks() uint64 {
	return p.TargetYears * SecondsPerYear / uint64(p.TargetBlockTime/time.Second)
}

// buckets returns the fixed allocation table shared by all networks:
// Community 45M, Team 15M, Treasury 15M, Founder 10M, Market 10M,
// Liquidity 5M. Community and Market are sourced from the emission pool.
func buckets() []AllocationBucket {
	return []AllocationBucket{
		{Name: "community", Total: 45_000_000, FromEmission: true},
		{Name: "team", Total: 15_000_000, CliffMonths: 12, DurationMonths: 36},
		{Name: "treasury", Total: 15_000_000, CliffMonths: 6, DurationMonths: 48},
		{Name: "founder", Total: 10_000_000, CliffMonths: 12, DurationMonths: 24},
		{Name: "market", Total: 10_000_000, FromEmission: true},
		{Name: "liquidity", Total: 5_000_000},
	}
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name: "mainnet",

	TotalSupply:       100_000_000,
	EmissionPoolTotal: 55_000_000,
	EpochLengthSec:    86_400,
	TargetYears:       10,
	TargetBlockTime:   60 * time.Second,

	RetargetInterval:         144,
	RetargetAdjustmentFactor: 4,
	PowLimit:                 mainPowLimit,
	PowLimitBits:             0x1d00ffff,

	MinSubsidy:   1,
	MaxSubsidy:   5000,
	TailEmission: 0,

	MaxBlockWeight: 1_000_000,
	MaxMempoolTx:   50_000,

	SignalTTL:     30 * time.Second,
	SignalTimeout: 10 * time.Second,

	GenesisTimestamp: 1735689600, // 2025-01-01 00:00:00 UTC

	Buckets: buckets(),
}

// SimNetParams defines the network parameters for the simulation test
// network. The proof of work limit is set very high so that blocks can be
// solved nearly instantly, which is useful for tests and local development.
var SimNetParams = Params{
	Name: "simnet",

	TotalSupply:       100_000_000,
	EmissionPoolTotal: 55_000_000,
	EpochLengthSec:    86_400,
	TargetYears:       10,
	TargetBlockTime:   60 * time.Second,

	RetargetInterval:         144,
	RetargetAdjustmentFactor: 4,
	PowLimit:                 simNetPowLimit,
	PowLimitBits:             0x207fffff,

	MinSubsidy:   1,
	MaxSubsidy:   5000,
	TailEmission: 0,

	MaxBlockWeight: 1_000_000,
	MaxMempoolTx:   1_000,

	SignalTTL:     30 * time.Second,
	SignalTimeout: 10 * time.Second,

	GenesisTimestamp: 1735689600,

	Buckets: buckets(),
}
