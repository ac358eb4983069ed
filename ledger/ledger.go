// Package ledger implements the append-only, hash-chained rewards ledger.
// Every issuance event is recorded as one JSON line whose entry hash commits
// to all of its fields and to the previous entry's hash, making insertions,
// deletions and edits detectable offline.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// Entry is one issuance record. Field order here is the canonical JSON
// field order of the on-disk format; hash fields are lowercase hex.
type Entry struct {
	Seq                   uint64 `json:"seq"`
	BlockHeight           uint64 `json:"block_height"`
	Miner                 string `json:"miner"`
	Subsidy               uint64 `json:"subsidy"`
	FeesTotal             uint64 `json:"fees_total"`
	SignalsDigest         string `json:"signals_digest"`
	PolicyDecisionsDigest string `json:"policy_decisions_digest"`
	Timestamp             int64  `json:"timestamp"`
	PrevHash              string `json:"prev_hash"`
	EntryHash             string `json:"entry_hash"`
}

// canonicalBytes returns the canonical byte form of everything the entry
// hash commits to besides the previous hash: deterministic field order,
// big-endian integers, varint-prefixed UTF-8 strings, raw digest bytes.
func (e *Entry) canonicalBytes() ([]byte, error) {
	signalsDigest, err := hash.FromString(e.SignalsDigest)
	if err != nil {
		return nil, errors.Wrap(err, "bad signals digest")
	}
	policyDigest, err := hash.FromString(e.PolicyDecisionsDigest)
	if err != nil {
		return nil, errors.Wrap(err, "bad policy decisions digest")
	}

	var buf bytes.Buffer
	_ = wire.WriteElement(&buf, e.Seq)
	_ = wire.WriteElement(&buf, e.BlockHeight)
	_ = wire.WriteVarString(&buf, e.Miner)
	_ = wire.WriteElement(&buf, e.Subsidy)
	_ = wire.WriteElement(&buf, e.FeesTotal)
	_ = wire.WriteElement(&buf, *signalsDigest)
	_ = wire.WriteElement(&buf, *policyDigest)
	_ = wire.WriteElement(&buf, e.Timestamp)
	return buf.Bytes(), nil
}

// computeEntryHash returns sha256(prevHash || canonicalBytes).
func (e *Entry) computeEntryHash() (hash.Hash, error) {
	prev, err := hash.FromString(e.PrevHash)
	if err != nil {
		return hash.Hash{}, errors.Wrap(err, "bad prev hash")
	}
	fields, err := e.canonicalBytes()
	if err != nil {
		return hash.Hash{}, err
	}
	payload := make([]byte, 0, hash.Size+len(fields))
	payload = append(payload, prev[:]...)
	payload = append(payload, fields...)
	return hash.HashH(payload), nil
}

// Ledger is the append-only rewards ledger bound to one JSONL file. The
// ledger exclusively owns its file; appends are serialized internally.
type Ledger struct {
	mtx      sync.Mutex
	path     string
	file     *os.File
	nextSeq  uint64
	headHash hash.Hash
}

// Open opens (creating if necessary) the ledger file at path, replays it to
// find the chain head, and truncates a trailing partial line left behind by
// a crashed writer.
func Open(path string) (*Ledger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open rewards ledger %s", path)
	}

	l := &Ledger{
		path:     path,
		file:     file,
		headHash: hash.ZeroHash,
	}

	validLen, err := l.replay()
	if err != nil {
		file.Close()
		return nil, err
	}

	// Drop a trailing partial line before the next append so the file
	// always ends on an entry boundary.
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "couldn't stat rewards ledger")
	}
	switch {
	case info.Size() > validLen:
		log.Warnf("Truncating %d bytes of trailing corruption from %s",
			info.Size()-validLen, path)
		if err := file.Truncate(validLen); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "couldn't truncate rewards ledger")
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "couldn't fsync rewards ledger")
		}

	case info.Size() < validLen:
		// The final entry parsed but its newline was lost in a torn
		// write. Restore it so the next append starts a fresh line.
		if _, err := file.WriteAt([]byte{'\n'}, info.Size()); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "couldn't repair rewards ledger")
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "couldn't fsync rewards ledger")
		}
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "couldn't seek rewards ledger")
	}
	return l, nil
}

// replay scans the ledger from the start, verifying the hash chain, and
// returns the byte length of the valid prefix. A parse failure on the final
// line is tolerated (it is trailing corruption from a torn write); a parse
// failure or hash mismatch anywhere else is LedgerCorruption.
func (l *Ledger) replay() (int64, error) {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "couldn't seek rewards ledger")
	}

	var lines [][]byte
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, maxEntryLine), maxEntryLine)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "couldn't scan rewards ledger")
	}

	var offset int64
	for i, line := range lines {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			if i == len(lines)-1 {
				// A partial final line is trailing corruption
				// from a torn write; replay stops here and
				// Open truncates the remainder.
				return offset, nil
			}
			return 0, corruptionError(l.nextSeq, offset,
				"entry does not parse: %s", err)
		}

		if err := l.checkNext(&entry, offset); err != nil {
			return 0, err
		}

		entryHash, _ := hash.FromString(entry.EntryHash)
		l.headHash = *entryHash
		l.nextSeq = entry.Seq + 1
		offset += int64(len(line)) + 1
	}
	return offset, nil
}

// checkNext validates that entry correctly extends the chain head.
func (l *Ledger) checkNext(entry *Entry, offset int64) error {
	if entry.Seq != l.nextSeq {
		return corruptionError(entry.Seq, offset,
			"entry out of sequence: got seq %d, want %d", entry.Seq, l.nextSeq)
	}
	if entry.PrevHash != l.headHash.String() {
		return corruptionError(entry.Seq, offset,
			"stale prev_hash: got %s, want %s", entry.PrevHash, l.headHash)
	}
	want, err := entry.computeEntryHash()
	if err != nil {
		return corruptionError(entry.Seq, offset, "unhashable entry: %s", err)
	}
	if entry.EntryHash != want.String() {
		return corruptionError(entry.Seq, offset,
			"entry hash mismatch: got %s, want %s", entry.EntryHash, want)
	}
	return nil
}

// maxEntryLine bounds a single ledger line.
const maxEntryLine = 1 << 16

// Append seals the given entry onto the chain: it assigns the next sequence
// number, links prev_hash to the current head, computes the entry hash, and
// durably appends the JSON line. When the write or fsync fails, the head
// does not advance and the file is not truncated here; a partial final line
// left behind is truncated by Open the next time the ledger is opened.
func (l *Ledger) Append(entry *Entry) (*Entry, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	sealed := *entry
	sealed.Seq = l.nextSeq
	sealed.PrevHash = l.headHash.String()
	entryHash, err := sealed.computeEntryHash()
	if err != nil {
		return nil, err
	}
	sealed.EntryHash = entryHash.String()

	line, err := json.Marshal(&sealed)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't marshal ledger entry")
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return nil, errors.Wrap(err, "couldn't append ledger entry")
	}
	if err := l.file.Sync(); err != nil {
		return nil, errors.Wrap(err, "couldn't fsync rewards ledger")
	}

	l.headHash = entryHash
	l.nextSeq = sealed.Seq + 1

	log.Debugf("Appended rewards ledger entry seq %d for block %d (%s)",
		sealed.Seq, sealed.BlockHeight, sealed.EntryHash)
	return &sealed, nil
}

// Close closes the underlying ledger file.
func (l *Ledger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.file.Close()
}

// HeadHash returns the entry hash of the latest entry, or the zero hash for
// an empty ledger.
func (l *Ledger) HeadHash() hash.Hash {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.headHash
}

// NextSeq returns the sequence number the next appended entry will receive.
func (l *Ledger) NextSeq() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.nextSeq
}
