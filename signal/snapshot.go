package signal

import (
	"bytes"

	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// Snapshot is an immutable capture of external congestion metrics. Once a
// snapshot is bound to a block template it is carried unchanged through the
// proof-of-work search so the subsidy cannot shift mid-mine.
type Snapshot struct {
	// MempoolTxs is the observed external mempool transaction count.
	MempoolTxs uint64 `json:"mempool_txs"`

	// MempoolBytes is the observed external mempool size in bytes.
	MempoolBytes uint64 `json:"mempool_bytes"`

	// FeeFast, FeeHour and FeeEcon are the observed fee-rate tiers.
	FeeFast uint64 `json:"fee_fast"`
	FeeHour uint64 `json:"fee_hour"`
	FeeEcon uint64 `json:"fee_econ"`

	// SourceTag identifies the collector that produced the snapshot.
	SourceTag string `json:"source_tag"`

	// CapturedAt is the unix time the snapshot was taken, kept so replay
	// determinism is auditable.
	CapturedAt int64 `json:"captured_at"`
}

// ZeroSnapshot returns the zero-pressure snapshot used when no collector
// result is available at all.
func ZeroSnapshot(capturedAt int64) *Snapshot {
	return &Snapshot{SourceTag: "none", CapturedAt: capturedAt}
}

// Digest returns the sha256 of the snapshot's canonical byte form. The
// digest is recorded in the rewards ledger next to every issuance event.
func (s *Snapshot) Digest() hash.Hash {
	var buf bytes.Buffer

	// The writes cannot fail on a bytes.Buffer.
	_ = wire.WriteElement(&buf, s.MempoolTxs)
	_ = wire.WriteElement(&buf, s.MempoolBytes)
	_ = wire.WriteElement(&buf, s.FeeFast)
	_ = wire.WriteElement(&buf, s.FeeHour)
	_ = wire.WriteElement(&buf, s.FeeEcon)
	_ = wire.WriteVarString(&buf, s.SourceTag)
	_ = wire.WriteElement(&buf, s.CapturedAt)
	return hash.HashH(buf.Bytes())
}
