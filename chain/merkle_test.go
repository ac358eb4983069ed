// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"testing"

	"github.com/ramianet/ramiad/wire"
)

// TestBuildMerkleRoot tests the merkle commitment over block transaction
// identifiers.
func TestBuildMerkleRoot(t *testing.T) {
	coinbase := wire.NewCoinbaseTx("miner_a", 19, 1735689760)
	tx1 := &wire.Tx{Sender: "alice", Recipient: "bob", Amount: 5, Fee: 100,
		Timestamp: 1735689760, Nonce: 1, Signature: []byte{1}}
	tx2 := &wire.Tx{Sender: "bob", Recipient: "carol", Amount: 3, Fee: 100,
		Timestamp: 1735689760, Nonce: 1, Signature: []byte{1}}

	single := &wire.MsgBlock{Transactions: []*wire.Tx{coinbase}}
	root := BuildMerkleRoot(single)
	if id := coinbase.TxID(); !root.IsEqual(&id) {
		t.Fatal("single-transaction root is not the transaction id")
	}

	pair := &wire.MsgBlock{Transactions: []*wire.Tx{coinbase, tx1}}
	pairRoot := BuildMerkleRoot(pair)
	if pairRoot.IsEqual(&root) {
		t.Fatal("root did not change when a transaction was added")
	}

	// An odd number of leaves duplicates the last: the tree over
	// [a, b, c] must differ from the tree over [a, b] and be stable.
	odd := &wire.MsgBlock{Transactions: []*wire.Tx{coinbase, tx1, tx2}}
	oddRoot := BuildMerkleRoot(odd)
	if oddRoot.IsEqual(&pairRoot) {
		t.Fatal("odd-leaf root equals the even-leaf root")
	}
	again := BuildMerkleRoot(odd)
	if !oddRoot.IsEqual(&again) {
		t.Fatal("merkle root is not deterministic")
	}

	// Reordering transactions changes the commitment.
	swapped := &wire.MsgBlock{Transactions: []*wire.Tx{coinbase, tx2, tx1}}
	swappedRoot := BuildMerkleRoot(swapped)
	if swappedRoot.IsEqual(&oddRoot) {
		t.Fatal("root does not commit to transaction order")
	}
}
