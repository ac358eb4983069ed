// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// TestBlockHeaderSerialize tests that the header round-trips through its
// canonical encoding and that the serialized form is exactly the fixed
// header payload size.
func TestBlockHeaderSerialize(t *testing.T) {
	header := BlockHeader{
		Version:   1,
		Timestamp: 1735689700,
		Bits:      0x207fffff,
		Nonce:     0xdeadbeef,
	}
	header.PrevBlock[0] = 0xab
	header.MerkleRoot[31] = 0xcd

	var buf bytes.Buffer
	if err := header.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: unexpected error: %v", err)
	}
	if buf.Len() != BlockHeaderPayload {
		t.Fatalf("Serialize: wrong length - got %d, want %d",
			buf.Len(), BlockHeaderPayload)
	}

	var decoded BlockHeader
	if err := decoded.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: unexpected error: %v", err)
	}
	if !reflect.DeepEqual(decoded, header) {
		t.Fatalf("Deserialize: mismatch - got %v, want %v",
			spew.Sdump(decoded), spew.Sdump(header))
	}
}

// TestBlockHashStable tests that the block hash only depends on the header
// contents and changes when the nonce changes.
func TestBlockHashStable(t *testing.T) {
	header := BlockHeader{Version: 1, Timestamp: 100, Bits: 0x207fffff}

	hash1 := header.BlockHash()
	hash2 := header.BlockHash()
	if !hash1.IsEqual(&hash2) {
		t.Fatal("BlockHash is not deterministic for identical headers")
	}

	header.Nonce++
	hash3 := header.BlockHash()
	if hash1.IsEqual(&hash3) {
		t.Fatal("BlockHash did not change with the nonce")
	}
}

// TestVarIntNonCanonical tests that non-canonically encoded variable
// length integers are rejected.
func TestVarIntNonCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"0xfd encoding for value < 0xfd", []byte{0xfd, 0x00, 0xfc}},
		{"0xfe encoding for value <= 0xffff", []byte{0xfe, 0x00, 0x00, 0xff, 0xff}},
		{"0xff encoding for value <= 0xffffffff", []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, test := range tests {
		if _, err := ReadVarInt(bytes.NewReader(test.in)); err == nil {
			t.Errorf("%s: did not reject non-canonical encoding", test.name)
		}
	}
}

// TestTxSerializeRoundTrip tests the canonical field-map encoding of
// representative transactions, including the optional-field edges.
func TestTxSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tx   Tx
	}{
		{
			name: "regular transfer",
			tx: Tx{
				Sender:    "alice",
				Recipient: "bob",
				Amount:    100,
				Fee:       10,
				Memo:      "lunch",
				Timestamp: 1735689700,
				Nonce:     1,
				Signature: []byte{0x01, 0x02},
			},
		},
		{
			name: "coinbase",
			tx: Tx{
				Recipient: "miner_a",
				Amount:    19,
				Timestamp: 1735689700,
			},
		},
		{
			name: "no memo no signature",
			tx: Tx{
				Sender:    "carol",
				Recipient: "dave",
				Amount:    1,
				Fee:       100,
				Timestamp: 42,
				Nonce:     7,
			},
		},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		if err := test.tx.Serialize(&buf); err != nil {
			t.Errorf("%s: Serialize: %v", test.name, err)
			continue
		}
		if buf.Len() != test.tx.SerializeSize() {
			t.Errorf("%s: SerializeSize mismatch - got %d, want %d",
				test.name, test.tx.SerializeSize(), buf.Len())
			continue
		}

		var decoded Tx
		if err := decoded.Deserialize(&buf); err != nil {
			t.Errorf("%s: Deserialize: %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(decoded, test.tx) {
			t.Errorf("%s: round trip mismatch - got %v, want %v",
				test.name, spew.Sdump(decoded), spew.Sdump(test.tx))
		}
	}
}

// TestTxDeserializeRejectsUnorderedTags tests that a field map whose tags
// do not strictly ascend is rejected, which is what makes the encoding
// canonical.
func TestTxDeserializeRejectsUnorderedTags(t *testing.T) {
	tx := Tx{
		Sender:    "alice",
		Recipient: "bob",
		Amount:    5,
		Fee:       1,
		Timestamp: 10,
		Nonce:     1,
	}
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Swap the first field tag (sender, tag 1) with a later tag value so
	// the sequence is no longer ascending.
	raw := buf.Bytes()
	raw[1] = 7

	var decoded Tx
	if err := decoded.Deserialize(bytes.NewReader(raw)); err == nil {
		t.Fatal("Deserialize accepted a non-canonical field order")
	}
}

// TestTxIDCommitsToFields tests that the transaction identifier changes
// with any field and is stable for identical transactions.
func TestTxIDCommitsToFields(t *testing.T) {
	base := Tx{
		Sender:    "alice",
		Recipient: "bob",
		Amount:    100,
		Fee:       10,
		Timestamp: 1000,
		Nonce:     1,
	}

	if base.TxID() != base.TxID() {
		t.Fatal("TxID is not deterministic")
	}

	altered := base
	altered.Amount++
	if base.TxID() == altered.TxID() {
		t.Fatal("TxID did not change with the amount")
	}
}
