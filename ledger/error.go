package ledger

import (
	"fmt"
)

// CorruptionError identifies a hash-chain break detected while replaying
// the ledger. It carries the sequence number and byte offset of the first
// diverging entry so an operator can locate the damage.
type CorruptionError struct {
	Seq         uint64
	ByteOffset  int64
	Description string
}

// Error satisfies the error interface and prints the error.
func (e CorruptionError) Error() string {
	return fmt.Sprintf("ledger corruption at seq %d (offset %d): %s",
		e.Seq, e.ByteOffset, e.Description)
}

// corruptionError creates a CorruptionError given a seq, offset and format.
func corruptionError(seq uint64, offset int64, format string, args ...interface{}) CorruptionError {
	return CorruptionError{
		Seq:         seq,
		ByteOffset:  offset,
		Description: fmt.Sprintf(format, args...),
	}
}
