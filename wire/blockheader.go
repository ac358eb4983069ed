// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/ramianet/ramiad/util/hash"
)

// BlockHeaderPayload is the number of bytes a serialized block header
// occupies. Version 4 bytes + PrevBlock hash + MerkleRoot hash +
// Timestamp 8 bytes + Bits 4 bytes + Nonce 8 bytes.
const BlockHeaderPayload = 24 + 2*hash.Size

// BlockHeader defines information about a block and is the input to the
// proof-of-work. The block hash is a single sha256 over the canonical
// 88-byte serialization.
type BlockHeader struct {
	// Version of the block.
	Version uint32

	// PrevBlock is the hash of the previous block header in the chain.
	PrevBlock hash.Hash

	// MerkleRoot is the merkle tree reference to the identifiers of all
	// transactions in the block.
	MerkleRoot hash.Hash

	// Timestamp is the unix time the block was created.
	Timestamp int64

	// Bits is the compact difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint64
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() hash.Hash {
	// Ignore the error returns since the only way the encode could fail
	// is a write error on the buffer, which cannot happen.
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderPayload))
	_ = writeBlockHeader(buf, h)
	return hash.HashH(buf.Bytes())
}

// Serialize encodes a block header to w using the canonical encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	return writeBlockHeader(w, h)
}

// Deserialize decodes a block header from r into the receiver.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	return readBlockHeader(r, h)
}

// NewBlockHeader returns a new BlockHeader using the provided previous block
// hash, merkle root, timestamp and difficulty bits, with a zero nonce to be
// filled in by the proof-of-work search.
func NewBlockHeader(prevBlock, merkleRoot hash.Hash, timestamp int64, bits uint32) *BlockHeader {
	return &BlockHeader{
		Version:    1,
		PrevBlock:  prevBlock,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Bits:       bits,
	}
}

// readBlockHeader reads a block header from r.
func readBlockHeader(r io.Reader, bh *BlockHeader) error {
	return readElements(r, &bh.Version, &bh.PrevBlock, &bh.MerkleRoot,
		&bh.Timestamp, &bh.Bits, &bh.Nonce)
}

// writeBlockHeader writes a block header to w.
func writeBlockHeader(w io.Writer, bh *BlockHeader) error {
	return writeElements(w, bh.Version, bh.PrevBlock, bh.MerkleRoot,
		bh.Timestamp, bh.Bits, bh.Nonce)
}
