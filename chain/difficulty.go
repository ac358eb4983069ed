// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"sort"
	"time"

	"github.com/ramianet/ramiad/util/hash"
)

// CompactToBig converts a compact representation of a whole number N to a
// big integer. The representation is similar to IEEE754 floating
// point numbers:
//
//	-------------------------------------------------
//	|   Exponent     |    Sign    |    Mantissa     |
//	-------------------------------------------------
//	| 8 bits [31-24] | 1 bit [23] | 23 bits [22-00] |
//	-------------------------------------------------
//
// The formula to calculate N is:
//
//	N = (-1^sign) * mantissa * 256^(exponent-3)
func CompactToBig(compact uint32) *big.Int {
	// Extract the mantissa, sign bit, and exponent.
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	// Since the base for the exponent is 256, the exponent can be treated
	// as the number of bytes to represent the full 256-bit number. So,
	// treat the exponent as the number of bytes and shift the mantissa
	// right or left accordingly.
	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	// Make it negative if the sign bit is set.
	if isNegative {
		bn = bn.Neg(bn)
	}

	return bn
}

// BigToCompact converts a whole number N to a compact representation using
// an unsigned 32-bit number. The compact representation only provides 23
// bits of precision, so values larger than (2^23 - 1) only encode the most
// significant digits of the number. See CompactToBig for details.
func BigToCompact(n *big.Int) uint32 {
	// No need to do any work if it's zero.
	if n.Sign() == 0 {
		return 0
	}

	// Since the base for the exponent is 256, the exponent can be treated
	// as the number of bytes. So, shift the number right or left
	// accordingly. This is equivalent to: mantissa = mantissa / 256^(exponent-3)
	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		// Use a copy to avoid modifying the caller's original number.
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	// When the mantissa already has the sign bit set, the number is too
	// large to fit into the available 23-bits, so divide the number by
	// 256 and increment the exponent accordingly.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	// Pack the exponent, sign bit, and mantissa into an unsigned 32-bit
	// int and return it.
	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// HashToBig converts a hash.Hash into a big.Int that can be used to perform
// math comparisons against a difficulty target.
func HashToBig(h *hash.Hash) *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// checkProofOfWork ensures the block header hashes to a value at or below
// the target difficulty encoded in its bits field, and that the bits field
// itself is in range.
func checkProofOfWork(header *blockHeaderLike, powLimit *big.Int) error {
	target := CompactToBig(header.bits)
	if target.Sign() <= 0 {
		return ruleError(ErrUnexpectedDifficulty,
			"block target difficulty is not positive")
	}
	if target.Cmp(powLimit) > 0 {
		return ruleError(ErrUnexpectedDifficulty,
			"block target difficulty is higher than the proof of work limit")
	}

	hashInt := HashToBig(&header.blockHash)
	if hashInt.Cmp(target) > 0 {
		return ruleError(ErrHighHash,
			"block hash is higher than the target difficulty")
	}
	return nil
}

// blockHeaderLike carries the two header fields the proof-of-work check
// needs, decoupled from the wire type so validation helpers stay testable.
type blockHeaderLike struct {
	blockHash hash.Hash
	bits      uint32
}

// calcNextRequiredDifficulty calculates the required difficulty bits for
// the block after prevNode.
//
// Retargeting happens every RetargetInterval blocks: the median inter-block
// solve time over the trailing window steers the target toward
// TargetBlockTime, with the per-step adjustment clamped to the configured
// factor in either direction and the result clamped to the proof-of-work
// limit.
//
// This function MUST be called with the chain state lock held (for reads).
func (c *Chain) calcNextRequiredDifficulty(prevNode *blockNode) uint32 {
	// Genesis block.
	if prevNode == nil {
		return c.params.PowLimitBits
	}

	nextHeight := prevNode.height + 1
	if nextHeight%c.params.RetargetInterval != 0 {
		return prevNode.bits
	}

	// Gather the inter-block solve times over the retarget window.
	windowStart := uint64(0)
	if nextHeight > c.params.RetargetInterval {
		windowStart = nextHeight - c.params.RetargetInterval
	}
	var deltas []int64
	for h := windowStart + 1; h <= prevNode.height; h++ {
		delta := c.nodes[h].timestamp - c.nodes[h-1].timestamp
		if delta < 1 {
			delta = 1
		}
		deltas = append(deltas, delta)
	}
	if len(deltas) == 0 {
		return prevNode.bits
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	medianDelta := deltas[len(deltas)/2]

	// Clamp the observed/target ratio to the adjustment factor.
	targetDelta := int64(c.params.TargetBlockTime / time.Second)
	minDelta := targetDelta / c.params.RetargetAdjustmentFactor
	maxDelta := targetDelta * c.params.RetargetAdjustmentFactor
	if medianDelta < minDelta {
		medianDelta = minDelta
	}
	if medianDelta > maxDelta {
		medianDelta = maxDelta
	}

	// newTarget = oldTarget * medianDelta / targetDelta. A larger median
	// means blocks are slow, so the target grows and difficulty drops.
	oldTarget := CompactToBig(prevNode.bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(medianDelta))
	newTarget.Div(newTarget, big.NewInt(targetDelta))
	if newTarget.Cmp(c.params.PowLimit) > 0 {
		newTarget.Set(c.params.PowLimit)
	}

	newBits := BigToCompact(newTarget)
	if newBits != prevNode.bits {
		log.Debugf("Difficulty retarget at height %d: median solve time "+
			"%ds, bits %08x -> %08x", nextHeight, medianDelta,
			prevNode.bits, newBits)
	}
	return newBits
}
