package guardian

import (
	"bytes"
	"math"

	"github.com/ramianet/ramiad/util/hash"
	"github.com/ramianet/ramiad/wire"
)

// Envelope is the policy decision shape returned to front-ends. Floats are
// rounded to four decimals so the serialized form is deterministic.
type Envelope struct {
	OK            bool     `json:"ok"`
	Suspicion     float64  `json:"suspicion"`
	FeeMultiplier float64  `json:"fee_multiplier"`
	Reasons       []string `json:"reasons"`
	Suggestions   []string `json:"suggestions"`
}

// round4 rounds to four decimal places.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Envelope converts the decision into its caller-facing shape.
func (d *Decision) Envelope() *Envelope {
	reasons := d.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	suggestions := d.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return &Envelope{
		OK:            d.Allow,
		Suspicion:     round4(d.Suspicion()),
		FeeMultiplier: round4(float64(d.FeeMultiplier)),
		Reasons:       reasons,
		Suggestions:   suggestions,
	}
}

// TxDecision pairs a transaction identifier with the policy outcome that
// admitted it. The rewards ledger commits to the full list for each block.
type TxDecision struct {
	TxID           hash.Hash
	SuspicionCents uint64
	FeeMultiplier  uint64
}

// DigestDecisions returns the sha256 over the canonical byte form of the
// admission decisions for one block, in block transaction order. An empty
// list hashes the empty prefix, so empty blocks still get a well-defined
// digest.
func DigestDecisions(decisions []TxDecision) hash.Hash {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, uint64(len(decisions)))
	for i := range decisions {
		d := &decisions[i]
		_ = wire.WriteElement(&buf, d.TxID)
		_ = wire.WriteElement(&buf, d.SuspicionCents)
		_ = wire.WriteElement(&buf, d.FeeMultiplier)
	}
	return hash.HashH(buf.Bytes())
}
