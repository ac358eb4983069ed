package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/util/hash"
)

// VerifyReport is the result of an offline ledger verification pass.
type VerifyReport struct {
	// OK is true when every entry's hash chain checks out and there is
	// no trailing corruption.
	OK bool `json:"ok"`

	// Entries is the number of fully verified entries before the first
	// divergence.
	Entries uint64 `json:"entries"`

	// HeadHash is the entry hash of the last verified entry, lowercase
	// hex; all zeros for an empty ledger.
	HeadHash string `json:"head_hash"`

	// FirstBadSeq and FirstBadOffset locate the first divergence when
	// OK is false and the failure is a hash-chain break.
	FirstBadSeq    uint64 `json:"first_bad_seq,omitempty"`
	FirstBadOffset int64  `json:"first_bad_offset,omitempty"`

	// Reason describes the first divergence.
	Reason string `json:"reason,omitempty"`

	// Notes carries secondary observations, such as successors whose
	// prev_hash went stale because of the first divergence.
	Notes []string `json:"notes,omitempty"`

	// TrailingCorruption is set when the final line does not parse. The
	// verified prefix is still intact; the next append will truncate
	// it.
	TrailingCorruption bool `json:"trailing_corruption,omitempty"`
}

// Verify reads the ledger file at path in order, recomputing every entry
// hash and checking every prev_hash link. It reports the first divergence
// along with what the divergence does to the successor's chain link.
func Verify(path string) (*VerifyReport, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// An absent ledger is an empty, valid ledger.
			return &VerifyReport{OK: true, HeadHash: hash.ZeroHash.String()}, nil
		}
		return nil, errors.Wrapf(err, "couldn't open rewards ledger %s", path)
	}
	defer file.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, maxEntryLine), maxEntryLine)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read rewards ledger")
	}

	report := &VerifyReport{OK: true, HeadHash: hash.ZeroHash.String()}
	prevHash := hash.ZeroHash
	var offset int64

	for i, line := range lines {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			report.OK = false
			if i == len(lines)-1 {
				report.TrailingCorruption = true
				report.Reason = "trailing partial line does not parse"
				return report, nil
			}
			report.FirstBadSeq = report.Entries
			report.FirstBadOffset = offset
			report.Reason = "entry does not parse"
			return report, nil
		}

		if diverged, reason := checkEntry(&entry, report.Entries, prevHash); diverged {
			report.OK = false
			report.FirstBadSeq = entry.Seq
			report.FirstBadOffset = offset
			report.Reason = reason
			annotateSuccessor(report, lines, i, &entry)
			return report, nil
		}

		entryHash, _ := hash.FromString(entry.EntryHash)
		prevHash = *entryHash
		report.Entries++
		report.HeadHash = entry.EntryHash
		offset += int64(len(line)) + 1
	}

	return report, nil
}

// checkEntry recomputes a single entry's hashes against the running chain
// state, returning whether it diverges along with the reason.
func checkEntry(entry *Entry, wantSeq uint64, prevHash hash.Hash) (bool, string) {
	if entry.Seq != wantSeq {
		return true, "entry out of sequence"
	}
	if entry.PrevHash != prevHash.String() {
		return true, "prev_hash is stale against predecessor entry_hash"
	}
	want, err := entry.computeEntryHash()
	if err != nil {
		return true, "entry fields are unhashable"
	}
	if entry.EntryHash != want.String() {
		return true, "entry_hash does not match recomputed hash"
	}
	return false, ""
}

// annotateSuccessor records what the divergence at lines[i] does to the
// next entry: when the bad entry's recomputed hash no longer matches what
// the successor chained to, the successor's prev_hash is stale even though
// it was honest when written.
func annotateSuccessor(report *VerifyReport, lines [][]byte, i int, bad *Entry) {
	if i+1 >= len(lines) {
		return
	}
	var next Entry
	if err := json.Unmarshal(lines[i+1], &next); err != nil {
		return
	}

	recomputed, err := bad.computeEntryHash()
	if err != nil {
		return
	}
	if next.PrevHash != recomputed.String() {
		report.Notes = append(report.Notes, fmt.Sprintf(
			"seq %d prev_hash is stale: it chains to the stored hash of "+
				"seq %d, which no longer matches its contents", next.Seq, bad.Seq))
	}
}

// Tail returns the last n entries of the ledger file at path, oldest
// first. Corrupt trailing data is skipped the same way Verify reports it.
func Tail(path string, n int) ([]*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "couldn't open rewards ledger %s", path)
	}
	defer file.Close()

	var entries []*Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, maxEntryLine), maxEntryLine)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			break
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't scan rewards ledger")
	}

	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
