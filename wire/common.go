// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/util/hash"
)

// MaxVarIntPayload is the maximum payload size for a variable length integer.
const MaxVarIntPayload = 9

var (
	// bigEndian is a convenience variable since binary.BigEndian is quite
	// long. All multi-byte integers in the canonical encoding are
	// big-endian.
	bigEndian = binary.BigEndian
)

// messageError wraps a description in an error annotated with the calling
// function.
func messageError(f string, desc string) error {
	return errors.Errorf("%s: %s", f, desc)
}

// ReadElement reads the next sequence of bytes from r using big-endian
// depending on the concrete type of element pointed to.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return errors.WithStack(err)
		}
		*e = bigEndian.Uint32(b[:])
		return nil

	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return errors.WithStack(err)
		}
		*e = bigEndian.Uint64(b[:])
		return nil

	case *int64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return errors.WithStack(err)
		}
		*e = int64(bigEndian.Uint64(b[:]))
		return nil

	case *hash.Hash:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	return errors.Errorf("unhandled element type %T", element)
}

// readElements reads multiple items from r. It is equivalent to multiple
// calls to ReadElement.
func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		err := ReadElement(r, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteElement writes the big-endian representation of element to w.
func WriteElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint32:
		var b [4]byte
		bigEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return errors.WithStack(err)

	case uint64:
		var b [8]byte
		bigEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return errors.WithStack(err)

	case int64:
		var b [8]byte
		bigEndian.PutUint64(b[:], uint64(e))
		_, err := w.Write(b[:])
		return errors.WithStack(err)

	case hash.Hash:
		_, err := w.Write(e[:])
		return errors.WithStack(err)
	}

	return errors.Errorf("unhandled element type %T", element)
}

// writeElements writes multiple items to w. It is equivalent to multiple
// calls to WriteElement.
func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		err := WriteElement(w, element)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	var disc [1]byte
	if _, err := io.ReadFull(r, disc[:]); err != nil {
		return 0, errors.WithStack(err)
	}

	var rv uint64
	switch disc[0] {
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, errors.WithStack(err)
		}
		rv = bigEndian.Uint64(b[:])

		// The encoding is not canonical if the value could have been
		// encoded using fewer bytes.
		min := uint64(0x100000000)
		if rv < min {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}

	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, errors.WithStack(err)
		}
		rv = uint64(bigEndian.Uint32(b[:]))

		min := uint64(0x10000)
		if rv < min {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}

	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, errors.WithStack(err)
		}
		rv = uint64(bigEndian.Uint16(b[:]))

		min := uint64(0xfd)
		if rv < min {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}

	default:
		rv = uint64(disc[0])
	}

	return rv, nil
}

// WriteVarInt serializes val to w using a variable number of bytes depending
// on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return errors.WithStack(err)
	}

	if val <= 0xffff {
		var b [3]byte
		b[0] = 0xfd
		bigEndian.PutUint16(b[1:], uint16(val))
		_, err := w.Write(b[:])
		return errors.WithStack(err)
	}

	if val <= 0xffffffff {
		var b [5]byte
		b[0] = 0xfe
		bigEndian.PutUint32(b[1:], uint32(val))
		_, err := w.Write(b[:])
		return errors.WithStack(err)
	}

	var b [9]byte
	b[0] = 0xff
	bigEndian.PutUint64(b[1:], val)
	_, err := w.Write(b[:])
	return errors.WithStack(err)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	// The value is small enough to be represented by itself, so it's
	// just 1 byte.
	if val < 0xfd {
		return 1
	}

	// Discriminant 1 byte plus 2 bytes for the uint16.
	if val <= 0xffff {
		return 3
	}

	// Discriminant 1 byte plus 4 bytes for the uint32.
	if val <= 0xffffffff {
		return 5
	}

	// Discriminant 1 byte plus 8 bytes for the uint64.
	return 9
}

// ReadVarBytes reads a variable length byte array. A byte array is encoded
// as a varInt containing the length of the array followed by the bytes
// themselves. An error is returned if the length is greater than the passed
// maxAllowed parameter which helps protect against memory exhaustion attacks
// and forced panics through malformed messages.
func ReadVarBytes(r io.Reader, maxAllowed uint32, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if count > uint64(maxAllowed) {
		return nil, messageError("ReadVarBytes",
			fieldName+" is larger than the max allowed size")
	}

	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// WriteVarBytes serializes a variable length byte array to w as a varInt
// containing the number of bytes, followed by the bytes themselves.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	err := WriteVarInt(w, uint64(len(bytes)))
	if err != nil {
		return err
	}

	_, err = w.Write(bytes)
	return errors.WithStack(err)
}

// ReadVarString reads a variable length string from r. A variable length
// string is encoded as a variable length integer containing the length of
// the string followed by the bytes that represent the string itself.
func ReadVarString(r io.Reader, maxAllowed uint32, fieldName string) (string, error) {
	b, err := ReadVarBytes(r, maxAllowed, fieldName)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString serializes str to w as a variable length integer containing
// the length of the string followed by the string bytes.
func WriteVarString(w io.Writer, str string) error {
	return WriteVarBytes(w, []byte(str))
}
