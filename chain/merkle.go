// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// hashMerkleBranches takes two hashes, treated as the left and right tree
// nodes, and returns the hash of their concatenation. This is a helper
// function used to aid in the generation of a merkle tree.
func hashMerkleBranches(left, right *hash.Hash) *hash.Hash {
	// Concatenate the left and right nodes.
	var h [hash.Size * 2]byte
	copy(h[:hash.Size], left[:])
	copy(h[hash.Size:], right[:])

	newHash := hash.DoubleHashH(h[:])
	return &newHash
}

// BuildMerkleRoot computes the merkle root over the block's transaction
// identifiers.
//
// The merkle tree is constructed bottom-up: the transaction ids form the
// leaves, and each level up pairs adjacent nodes. A level with an odd
// number of nodes duplicates its last node to make the pairing even.
func BuildMerkleRoot(block *wire.MsgBlock) hash.Hash {
	ids := block.TxIDs()
	if len(ids) == 0 {
		return hash.ZeroHash
	}

	level := make([]*hash.Hash, len(ids))
	for i := range ids {
		id := ids[i]
		level[i] = &id
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]*hash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashMerkleBranches(level[i], level[i+1]))
		}
		level = next
	}
	return *level[0]
}
