// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tokenomics

import (
	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/signal"
)

// Fixed-point scale for pressure and multiplier math. All congestion
// arithmetic is done in parts-per-thousand integers so that every platform
// computes the identical subsidy for the identical inputs.
const pptScale = 1000

const (
	// maxPressurePPT caps either pressure component at 3.0.
	maxPressurePPT = 3 * pptScale

	// pressureWeightPPT scales pressure into the multiplier bonus: the
	// bonus is pressure/4, so a pressure of 3.0 yields 0.75.
	pressureWeightPPT = 250

	// maxBonusPPT caps the multiplier bonus at 0.75, bounding the
	// multiplier to [1.0, 1.75].
	maxBonusPPT = 750

	// feeFastDivisor and mempoolTxsDivisor normalize the raw signal
	// values into pressure units.
	feeFastDivisor    = 50
	mempoolTxsDivisor = 50_000
)

// pressurePPT converts a congestion snapshot into a bounded scalar in
// parts-per-thousand: the larger of the fee pressure and the mempool
// pressure, each capped at 3.0.
func pressurePPT(signals *signal.Snapshot) uint64 {
	feePressure := signals.FeeFast * pptScale / feeFastDivisor
	if feePressure > maxPressurePPT {
		feePressure = maxPressurePPT
	}
	mempoolPressure := signals.MempoolTxs * pptScale / mempoolTxsDivisor
	if mempoolPressure > maxPressurePPT {
		mempoolPressure = maxPressurePPT
	}
	if feePressure > mempoolPressure {
		return feePressure
	}
	return mempoolPressure
}

// Subsidy computes the block subsidy for a block at the given height given
// the amount minted so far and the congestion snapshot bound to the block.
//
// The baseline paces the remaining supply evenly over the remaining blocks
// of the target emission period. Congestion pressure raises the subsidy by
// up to 75%, and the result is clamped to the configured bounds and to
// whatever supply actually remains. The computation is deterministic given
// the snapshot and uses integer arithmetic throughout; there is no
// smoothing across calls.
func Subsidy(params *chaincfg.Params, height, mintedTotal uint64, signals *signal.Snapshot) uint64 {
	if mintedTotal >= params.TotalSupply {
		return params.TailEmission
	}
	remaining := params.TotalSupply - mintedTotal

	targetBlocks := params.TargetBlocks()
	remainingBlocks := uint64(1)
	if height < targetBlocks {
		remainingBlocks = targetBlocks - height
	}

	baseline := remaining / remainingBlocks
	if baseline < 1 {
		baseline = 1
	}

	bonusPPT := pressureWeightPPT * pressurePPT(signals) / pptScale
	if bonusPPT > maxBonusPPT {
		bonusPPT = maxBonusPPT
	}
	multiplierPPT := uint64(pptScale) + bonusPPT

	subsidy := baseline * multiplierPPT / pptScale
	if subsidy < params.MinSubsidy {
		subsidy = params.MinSubsidy
	}
	if subsidy > params.MaxSubsidy {
		subsidy = params.MaxSubsidy
	}
	if subsidy > remaining {
		subsidy = remaining
	}
	return subsidy
}

// forecastAlphaPPT is the EWMA weight of the newest observation in the
// reward forecast.
const forecastAlphaPPT = 300

// Forecaster smooths subsidy observations for operator-facing reward
// modeling. It is NOT part of consensus: Subsidy never consults it, and its
// output never reaches a coinbase.
type Forecaster struct {
	initialized bool
	ewmaPPT     uint64
}

// Observe feeds one subsidy observation and returns the smoothed forecast.
func (f *Forecaster) Observe(subsidy uint64) uint64 {
	scaled := subsidy * pptScale
	if !f.initialized {
		f.initialized = true
		f.ewmaPPT = scaled
	} else {
		f.ewmaPPT = (forecastAlphaPPT*scaled + (pptScale-forecastAlphaPPT)*f.ewmaPPT) / pptScale
	}
	return f.ewmaPPT / pptScale
}

// Forecast returns the current smoothed reward forecast without feeding a
// new observation.
func (f *Forecaster) Forecast() uint64 {
	return f.ewmaPPT / pptScale
}
