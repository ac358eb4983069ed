// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/chain"
)

// nonceCheckStride is how many nonce attempts run between cancellation
// checks. The proof-of-work loop owns no shared state, so this is the only
// point where the outside world can stop it.
const nonceCheckStride = 1 << 16

// maxNonce is the highest nonce value before the search bumps the header
// timestamp and starts over.
const maxNonce = ^uint64(0)

// ErrMiningCanceled is returned when the proof-of-work search is stopped
// through its context before a solution is found.
var ErrMiningCanceled = errors.New("mining canceled")

// SolveBlock attempts to find a nonce which makes the template's block
// header hash to a value at or below its target difficulty. The header
// nonce (and, on nonce-space exhaustion, its timestamp) is mutated in
// place; everything else in the template, including the bound signal
// snapshot, stays fixed.
//
// Cancellation is cooperative: the context is checked every
// nonceCheckStride attempts, so a cancel stops the search at the next
// stride boundary.
func SolveBlock(ctx context.Context, template *BlockTemplate) error {
	header := &template.Block.Header
	target := chain.CompactToBig(header.Bits)

	hashesCompleted := uint64(0)
	for {
		for nonce := uint64(0); ; nonce++ {
			if nonce%nonceCheckStride == 0 {
				select {
				case <-ctx.Done():
					log.Debugf("Abandoning block %d search after %d hashes",
						template.Height, hashesCompleted)
					return ErrMiningCanceled
				default:
				}
			}

			header.Nonce = nonce
			blockHash := header.BlockHash()
			hashesCompleted++

			if chain.HashToBig(&blockHash).Cmp(target) <= 0 {
				log.Debugf("Solved block %d after %d hashes (nonce %d)",
					template.Height, hashesCompleted, nonce)
				return nil
			}

			if nonce == maxNonce {
				break
			}
		}

		// The entire nonce space is spent; move the timestamp forward
		// one second and search again.
		header.Timestamp++
		log.Debugf("Exhausted nonce space for block %d, bumping "+
			"timestamp to %d", template.Height, header.Timestamp)
	}
}
