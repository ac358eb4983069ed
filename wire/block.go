// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/ramianet/ramiad/util/hash"
)

// MaxTxPerBlock is the maximum number of transactions that could possibly
// fit into a block.
const MaxTxPerBlock = 100000

// MsgBlock implements a block of transactions: a header followed by the
// ordered transaction list, the first of which must be the coinbase.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*Tx
}

// AddTransaction adds a transaction to the block.
func (b *MsgBlock) AddTransaction(tx *Tx) {
	b.Transactions = append(b.Transactions, tx)
}

// BlockHash computes the block identifier hash for this block.
func (b *MsgBlock) BlockHash() hash.Hash {
	return b.Header.BlockHash()
}

// TxIDs returns the transaction identifiers for all transactions in the
// block, in block order.
func (b *MsgBlock) TxIDs() []hash.Hash {
	ids := make([]hash.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.TxID()
	}
	return ids
}

// Serialize encodes the block to w using the canonical encoding: the
// 88-byte header, a varint transaction count, then the transactions in
// order.
func (b *MsgBlock) Serialize(w io.Writer) error {
	err := b.Header.Serialize(w)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, uint64(len(b.Transactions)))
	if err != nil {
		return err
	}

	for _, tx := range b.Transactions {
		err = tx.Serialize(w)
		if err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a block from r into the receiver.
func (b *MsgBlock) Deserialize(r io.Reader) error {
	err := b.Header.Deserialize(r)
	if err != nil {
		return err
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if txCount > MaxTxPerBlock {
		return messageError("MsgBlock.Deserialize",
			"block transaction count is too high")
	}

	b.Transactions = make([]*Tx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx := Tx{}
		err := tx.Deserialize(r)
		if err != nil {
			return err
		}
		b.Transactions = append(b.Transactions, &tx)
	}
	return nil
}

// SerializeSize returns the number of bytes it would take to serialize the
// block.
func (b *MsgBlock) SerializeSize() int {
	n := BlockHeaderPayload + VarIntSerializeSize(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		n += tx.SerializeSize()
	}
	return n
}

// NewMsgBlock returns a new block message with the provided header and no
// transactions.
func NewMsgBlock(header *BlockHeader) *MsgBlock {
	return &MsgBlock{
		Header:       *header,
		Transactions: make([]*Tx, 0, 1),
	}
}
