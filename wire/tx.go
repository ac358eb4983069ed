// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/ramianet/ramiad/util/hash"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 1

	// MaxIdentityLen is the maximum number of bytes an account identity
	// string may occupy.
	MaxIdentityLen = 128

	// MaxMemoLen is the maximum number of bytes a transaction memo may
	// occupy.
	MaxMemoLen = 256

	// MaxSignatureLen is the maximum number of bytes an opaque transaction
	// signature may occupy. The signature is never interpreted by the
	// chain itself; it is handed to the configured verifier as-is.
	MaxSignatureLen = 512
)

// Stable field tags for the canonical transaction field-map encoding. Fields
// are written in strictly ascending tag order; absent fields are omitted.
const (
	txTagSender    = 1
	txTagRecipient = 2
	txTagAmount    = 3
	txTagFee       = 4
	txTagMemo      = 5
	txTagTimestamp = 6
	txTagNonce     = 7
	txTagSignature = 8
)

// Tx defines a transaction moving an integer amount between two account
// identities. A coinbase transaction has an empty Sender, carries no fee, no
// nonce, and no signature; it is valid only as the first transaction of a
// block.
type Tx struct {
	// Sender is the paying account identity. Empty for coinbase.
	Sender string

	// Recipient is the receiving account identity.
	Recipient string

	// Amount is the transferred value in the smallest unit.
	Amount uint64

	// Fee is the declared fee in the smallest unit. The effective fee a
	// transaction ends up paying may be larger when the policy layer
	// applies a multiplier.
	Fee uint64

	// Memo is an optional short free-form annotation.
	Memo string

	// Timestamp is the unix time the sender created the transaction.
	Timestamp int64

	// Nonce is the per-sender monotonic sequence number.
	Nonce uint64

	// Signature is an opaque byte string. The chain treats it as a black
	// box validated by an injected verifier.
	Signature []byte
}

// IsCoinBase determines whether or not a transaction is a coinbase. A
// coinbase is the block subsidy payout and is identified by an empty sender.
func (tx *Tx) IsCoinBase() bool {
	return tx.Sender == ""
}

// fieldCount returns the number of fields the canonical encoding will emit.
func (tx *Tx) fieldCount() uint64 {
	count := uint64(4) // recipient, amount, fee, timestamp
	if tx.Sender != "" {
		count++
	}
	if tx.Memo != "" {
		count++
	}
	if tx.Nonce != 0 {
		count++
	}
	if len(tx.Signature) > 0 {
		count++
	}
	return count
}

// Serialize encodes tx to w using the canonical field-map encoding: a varint
// field count followed by (tag, value) pairs in ascending tag order.
func (tx *Tx) Serialize(w io.Writer) error {
	if err := WriteVarInt(w, tx.fieldCount()); err != nil {
		return err
	}
	if tx.Sender != "" {
		if err := WriteVarInt(w, txTagSender); err != nil {
			return err
		}
		if err := WriteVarString(w, tx.Sender); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, txTagRecipient); err != nil {
		return err
	}
	if err := WriteVarString(w, tx.Recipient); err != nil {
		return err
	}
	if err := WriteVarInt(w, txTagAmount); err != nil {
		return err
	}
	if err := WriteElement(w, tx.Amount); err != nil {
		return err
	}
	if err := WriteVarInt(w, txTagFee); err != nil {
		return err
	}
	if err := WriteElement(w, tx.Fee); err != nil {
		return err
	}
	if tx.Memo != "" {
		if err := WriteVarInt(w, txTagMemo); err != nil {
			return err
		}
		if err := WriteVarString(w, tx.Memo); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, txTagTimestamp); err != nil {
		return err
	}
	if err := WriteElement(w, tx.Timestamp); err != nil {
		return err
	}
	if tx.Nonce != 0 {
		if err := WriteVarInt(w, txTagNonce); err != nil {
			return err
		}
		if err := WriteElement(w, tx.Nonce); err != nil {
			return err
		}
	}
	if len(tx.Signature) > 0 {
		if err := WriteVarInt(w, txTagSignature); err != nil {
			return err
		}
		if err := WriteVarBytes(w, tx.Signature); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes a transaction from r. The encoding requires strictly
// ascending field tags, which makes every transaction have exactly one
// canonical byte form.
func (tx *Tx) Deserialize(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > 8 {
		return messageError("Tx.Deserialize", "too many transaction fields")
	}

	*tx = Tx{}
	prevTag := uint64(0)
	for i := uint64(0); i < count; i++ {
		tag, err := ReadVarInt(r)
		if err != nil {
			return err
		}
		if tag <= prevTag {
			return messageError("Tx.Deserialize",
				"transaction field tags not strictly ascending")
		}
		prevTag = tag

		switch tag {
		case txTagSender:
			tx.Sender, err = ReadVarString(r, MaxIdentityLen, "sender")
		case txTagRecipient:
			tx.Recipient, err = ReadVarString(r, MaxIdentityLen, "recipient")
		case txTagAmount:
			err = ReadElement(r, &tx.Amount)
		case txTagFee:
			err = ReadElement(r, &tx.Fee)
		case txTagMemo:
			tx.Memo, err = ReadVarString(r, MaxMemoLen, "memo")
		case txTagTimestamp:
			err = ReadElement(r, &tx.Timestamp)
		case txTagNonce:
			err = ReadElement(r, &tx.Nonce)
		case txTagSignature:
			tx.Signature, err = ReadVarBytes(r, MaxSignatureLen, "signature")
		default:
			return messageError("Tx.Deserialize", "unknown transaction field tag")
		}
		if err != nil {
			return err
		}
	}

	if tx.Recipient == "" {
		return messageError("Tx.Deserialize", "transaction has no recipient")
	}
	return nil
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction.
func (tx *Tx) SerializeSize() int {
	size := VarIntSerializeSize(tx.fieldCount())
	if tx.Sender != "" {
		size += 1 + VarIntSerializeSize(uint64(len(tx.Sender))) + len(tx.Sender)
	}
	size += 1 + VarIntSerializeSize(uint64(len(tx.Recipient))) + len(tx.Recipient)
	size += 1 + 8 // amount
	size += 1 + 8 // fee
	if tx.Memo != "" {
		size += 1 + VarIntSerializeSize(uint64(len(tx.Memo))) + len(tx.Memo)
	}
	size += 1 + 8 // timestamp
	if tx.Nonce != 0 {
		size += 1 + 8
	}
	if len(tx.Signature) > 0 {
		size += 1 + VarIntSerializeSize(uint64(len(tx.Signature))) + len(tx.Signature)
	}
	return size
}

// TxID generates the identifier hash for the transaction: the double sha256
// of its canonical encoding.
func (tx *Tx) TxID() hash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))

	// Ignore the error returns since the only way the serialize could
	// fail is a write error on the buffer, which cannot happen.
	_ = tx.Serialize(buf)
	return hash.DoubleHashH(buf.Bytes())
}

// NewCoinbaseTx returns a coinbase transaction paying value to miner at the
// given timestamp.
func NewCoinbaseTx(miner string, value uint64, timestamp int64) *Tx {
	return &Tx{
		Recipient: miner,
		Amount:    value,
		Timestamp: timestamp,
	}
}
