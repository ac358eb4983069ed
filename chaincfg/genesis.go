// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// genesisCoinbaseTx is the coinbase transaction for the genesis block. It
// carries no value; the emission schedule only starts paying from block one.
var genesisCoinbaseTx = wire.Tx{
	Recipient: "genesis",
	Amount:    0,
	Timestamp: MainNetParams.GenesisTimestamp,
}

// GenesisBlock returns the genesis block for the given network. The genesis
// block is not subject to the proof-of-work check; it is accepted by
// identity.
func GenesisBlock(params *Params) *wire.MsgBlock {
	coinbase := genesisCoinbaseTx
	coinbase.Timestamp = params.GenesisTimestamp

	merkleRoot := coinbase.TxID()
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  hash.ZeroHash,
			MerkleRoot: merkleRoot,
			Timestamp:  params.GenesisTimestamp,
			Bits:       params.PowLimitBits,
			Nonce:      0,
		},
		Transactions: []*wire.Tx{&coinbase},
	}
}

// GenesisHash returns the hash of the genesis block for the given network.
func GenesisHash(params *Params) hash.Hash {
	return GenesisBlock(params).BlockHash()
}
