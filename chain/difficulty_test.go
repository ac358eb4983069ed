// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"testing"

	"github.com/ramianet/ramiad/chaincfg"
	"github.com/ramianet/ramiad/util/hash"
)

// TestCompactBigRoundTrip tests conversion between compact bits and big
// integer targets on representative values.
func TestCompactBigRoundTrip(t *testing.T) {
	tests := []uint32{
		0x207fffff, // simnet limit
		0x1d00ffff, // mainnet limit
		0x1b0404cb,
		0x1c654321,
	}

	for _, bits := range tests {
		if got := BigToCompact(CompactToBig(bits)); got != bits {
			t.Errorf("round trip %08x: got %08x", bits, got)
		}
	}
}

// buildTestChain returns a chain index with synthetic solve times. Every
// block is spaced solveTime seconds apart at constant bits.
func buildTestChain(params *chaincfg.Params, numBlocks uint64, solveTime int64) *Chain {
	c := &Chain{
		params:   params,
		index:    make(map[hash.Hash]uint64),
		balances: make(map[string]uint64),
		nonces:   make(map[string]uint64),
	}
	ts := params.GenesisTimestamp
	for h := uint64(0); h <= numBlocks; h++ {
		c.nodes = append(c.nodes, &blockNode{
			height:    h,
			timestamp: ts,
			bits:      params.PowLimitBits,
		})
		ts += solveTime
	}
	return c
}

// TestRetargetInterval tests that the difficulty only moves on retarget
// boundaries.
func TestRetargetInterval(t *testing.T) {
	params := chaincfg.SimNetParams
	c := buildTestChain(&params, params.RetargetInterval-2, 30)

	if got := c.calcNextRequiredDifficulty(c.tip()); got != params.PowLimitBits {
		t.Fatalf("mid-window retarget: got %08x, want %08x",
			got, params.PowLimitBits)
	}
}

// TestRetargetRaisesDifficulty tests that fast blocks shrink the target
// at the boundary.
func TestRetargetRaisesDifficulty(t *testing.T) {
	params := chaincfg.MainNetParams
	// Blocks at half the target time: the new target should be about
	// half the old one.
	c := buildTestChain(&params, params.RetargetInterval-1, 30)

	newBits := c.calcNextRequiredDifficulty(c.tip())
	oldTarget := CompactToBig(params.PowLimitBits)
	newTarget := CompactToBig(newBits)
	if newTarget.Cmp(oldTarget) >= 0 {
		t.Fatalf("fast blocks did not raise difficulty: %08x -> %08x",
			params.PowLimitBits, newBits)
	}
}

// TestRetargetClampsAdjustment tests the 4x clamp on a single step in both
// directions.
func TestRetargetClampsAdjustment(t *testing.T) {
	params := chaincfg.MainNetParams
	oldTarget := CompactToBig(params.PowLimitBits)

	// Absurdly fast blocks: clamp to a quarter of the old target.
	fast := buildTestChain(&params, params.RetargetInterval-1, 1)
	fastTarget := CompactToBig(fast.calcNextRequiredDifficulty(fast.tip()))
	wantFast := new(big.Int).Div(oldTarget, big.NewInt(4))
	if BigToCompact(fastTarget) != BigToCompact(wantFast) {
		t.Fatalf("fast clamp: got %08x, want %08x",
			BigToCompact(fastTarget), BigToCompact(wantFast))
	}

	// Absurdly slow blocks: the target would quadruple, but it is
	// already at the proof-of-work limit, so it pins there.
	slow := buildTestChain(&params, params.RetargetInterval-1, 100_000)
	if got := slow.calcNextRequiredDifficulty(slow.tip()); got != params.PowLimitBits {
		t.Fatalf("slow clamp at limit: got %08x, want %08x",
			got, params.PowLimitBits)
	}
}

// TestCheckProofOfWorkRejectsHighHash tests the target comparison.
func TestCheckProofOfWorkRejectsHighHash(t *testing.T) {
	params := chaincfg.MainNetParams

	var high blockHeaderLike
	high.bits = params.PowLimitBits
	for i := range high.blockHash {
		high.blockHash[i] = 0xff
	}
	err := checkProofOfWork(&high, params.PowLimit)
	if code, ok := ExtractRuleErrorCode(err); !ok || code != ErrHighHash {
		t.Fatalf("all-ones hash: got %v, want ErrHighHash", err)
	}

	var low blockHeaderLike
	low.bits = params.PowLimitBits
	if err := checkProofOfWork(&low, params.PowLimit); err != nil {
		t.Fatalf("all-zeros hash: unexpected error %v", err)
	}

	// Bits claiming an easier target than the limit are rejected no
	// matter the hash.
	var tooEasy blockHeaderLike
	tooEasy.bits = 0x21008000
	err = checkProofOfWork(&tooEasy, params.PowLimit)
	if code, ok := ExtractRuleErrorCode(err); !ok || code != ErrUnexpectedDifficulty {
		t.Fatalf("out-of-range bits: got %v, want ErrUnexpectedDifficulty", err)
	}
}
