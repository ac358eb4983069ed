// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Size is the length in bytes of a Hash.
const Size = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = Size * 2

// ErrHashStrSize describes an error that indicates the caller specified a hash
// string that has too many characters.
var ErrHashStrSize = errors.Errorf("max hash string length is %d bytes", MaxHashStringSize)

// Hash is used in several of the chain messages and common structures. It
// typically represents the sha256 of data.
type Hash [Size]byte

// ZeroHash is the Hash value of all zero bytes, used as the predecessor of the
// first entry in hash chains.
var ZeroHash Hash

// String returns the Hash as the hexadecimal string of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// CloneBytes returns a copy of the bytes which represent the hash as a byte
// slice.
func (h *Hash) CloneBytes() []byte {
	newHash := make([]byte, Size)
	copy(newHash, h[:])
	return newHash
}

// SetBytes sets the bytes which represent the hash. An error is returned if
// the number of bytes passed in is not Size.
func (h *Hash) SetBytes(newHash []byte) error {
	nhlen := len(newHash)
	if nhlen != Size {
		return errors.Errorf("invalid hash length of %d, want %d", nhlen, Size)
	}
	copy(h[:], newHash)
	return nil
}

// IsEqual returns true if target is the same as hash.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return *h == *target
}

// FromBytes returns a new Hash from a byte slice. An error is returned if the
// number of bytes passed in is not Size.
func FromBytes(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// FromString creates a Hash from a hash string. The string should be the
// hexadecimal string of a hash.
func FromString(src string) (*Hash, error) {
	if len(src) > MaxHashStringSize {
		return nil, ErrHashStrSize
	}
	raw, err := hex.DecodeString(src)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't decode hash string %s", src)
	}
	return FromBytes(raw)
}

// HashB calculates the sha256 of b.
func HashB(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// HashH calculates the sha256 of b and returns the resulting bytes as a Hash.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// DoubleHashH calculates sha256(sha256(b)) and returns the resulting bytes as
// a Hash.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}
