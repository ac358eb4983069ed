// Package guardian implements the transaction risk policy: a deterministic
// scorer that folds per-transaction features into a suspicion score and maps
// it to an allow/warn/deny decision with a fee multiplier.
//
// The scorer is pure. The same transaction and the same burst context always
// produce the same decision; it never reads the wall clock and keeps no
// state of its own.
package guardian

import (
	"strings"

	"github.com/ramianet/ramiad/wire"
)

// Suspicion is scored in integer hundredths so that every platform computes
// the identical score for identical inputs. 100 corresponds to 1.0.
const suspicionScale = 100

// Feature contributions, in hundredths.
const (
	patternWeight    = 20 // per distinct matched memo pattern
	patternCap       = 60
	longMemoWeight   = 5  // memo longer than longMemoThreshold
	manyOutputsScore = 15 // output count at or above manyOutputsThreshold
	zeroFeeScore     = 35
	lowFeeScore      = 15 // nonzero fee below lowFeeThreshold
	feeRatioScore    = 10 // fee-to-amount ratio below 1e-5
	burstStepScore   = 5  // per recent send beyond burstFreeSends
	burstCap         = 25
)

const (
	longMemoThreshold    = 192
	manyOutputsThreshold = 6
	lowFeeThreshold      = 100
	burstFreeSends       = 2

	// feeRatioDenominator expresses the 1e-5 fee-to-amount threshold in
	// integer form: the ratio is below 1e-5 iff fee*1e5 < amount.
	feeRatioDenominator = 100_000
)

// Decision thresholds, in hundredths.
const (
	warnThreshold     = 40
	highRiskThreshold = 70
	denyThreshold     = 90
)

// Mandatory reason strings per the policy table.
const (
	ReasonSuspicious  = "suspicious_tx_warning"
	ReasonHighRisk    = "high_risk_tx_warning"
	ReasonExtremeSpam = "tx_denied_extreme_spam"
)

// memoPatterns is the fixed list of memo phrases the scorer looks for.
// Matching is case-insensitive substring matching.
var memoPatterns = []string{
	"http://",
	"https://",
	"www.",
	"free money",
	"airdrop",
	"claim",
	"giveaway",
	"seed phrase",
	"double your",
	"guaranteed return",
}

// Context carries the deterministic surroundings of a scoring call. The
// caller owns burst tracking; the scorer only consumes the resulting count.
type Context struct {
	// RecentSends is the number of transactions the same sender
	// submitted inside the trailing 60-second burst window, not counting
	// the transaction being scored.
	RecentSends int

	// Outputs is the number of outputs the transaction fans out to.
	// Plain transfers have one.
	Outputs int
}

// Decision is the policy verdict for one transaction.
type Decision struct {
	// Allow is false only for a deny.
	Allow bool

	// FeeMultiplier is the integer multiplier applied to the declared
	// fee to obtain the effective fee. 1 for a clean allow; larger for
	// warnings; 0 for a deny.
	FeeMultiplier uint64

	// SuspicionCents is the suspicion score in hundredths, in [0, 100].
	SuspicionCents int

	// Reasons holds the mandatory reason codes plus per-feature detail.
	Reasons []string

	// Suggestions holds per-feature remediation hints.
	Suggestions []string
}

// Suspicion returns the score as a unit-interval value.
func (d *Decision) Suspicion() float64 {
	return float64(d.SuspicionCents) / suspicionScale
}

// ScoreTx scores a single regular transaction against the policy. The
// decision is deterministic in (tx, ctx).
func ScoreTx(tx *wire.Tx, ctx *Context) *Decision {
	cents := 0
	var reasons, suggestions []string

	memo := strings.ToLower(tx.Memo)
	matched := 0
	urlMatched := false
	for _, pattern := range memoPatterns {
		if !strings.Contains(memo, pattern) {
			continue
		}
		matched++
		if pattern == "http://" || pattern == "https://" || pattern == "www." {
			urlMatched = true
		}
	}
	if matched > 0 {
		patternScore := matched * patternWeight
		if patternScore > patternCap {
			patternScore = patternCap
		}
		cents += patternScore
		reasons = append(reasons, "memo_matches_spam_patterns")
		if urlMatched {
			suggestions = append(suggestions, "remove URLs from the memo")
		}
		suggestions = append(suggestions, "avoid known spam phrases in the memo")
	}

	if len(tx.Memo) > longMemoThreshold {
		cents += longMemoWeight
		reasons = append(reasons, "memo_unusually_long")
		suggestions = append(suggestions, "shorten the memo")
	}

	outputs := ctx.Outputs
	if outputs < 1 {
		outputs = 1
	}
	if outputs >= manyOutputsThreshold {
		cents += manyOutputsScore
		reasons = append(reasons, "high_output_fanout")
		suggestions = append(suggestions, "reduce the number of outputs")
	}

	switch {
	case tx.Fee == 0:
		cents += zeroFeeScore
		reasons = append(reasons, "zero_fee")
		suggestions = append(suggestions, "attach a fee of at least 100")
	case tx.Fee < lowFeeThreshold:
		cents += lowFeeScore
		reasons = append(reasons, "low_fee")
		suggestions = append(suggestions, "increase the fee above 100")
	}

	if tx.Fee > 0 && tx.Amount > 0 && tx.Fee*feeRatioDenominator < tx.Amount {
		cents += feeRatioScore
		reasons = append(reasons, "fee_negligible_for_amount")
		suggestions = append(suggestions, "raise the fee in proportion to the amount")
	}

	if ctx.RecentSends > burstFreeSends {
		burstScore := (ctx.RecentSends - burstFreeSends) * burstStepScore
		if burstScore > burstCap {
			burstScore = burstCap
		}
		cents += burstScore
		reasons = append(reasons, "sender_burst_activity")
		suggestions = append(suggestions, "slow down repeated sends")
	}

	if cents > suspicionScale {
		cents = suspicionScale
	}

	decision := &Decision{
		Allow:          true,
		FeeMultiplier:  1,
		SuspicionCents: cents,
		Reasons:        reasons,
		Suggestions:    suggestions,
	}
	switch {
	case cents >= denyThreshold:
		decision.Allow = false
		decision.FeeMultiplier = 0
		decision.Reasons = append([]string{ReasonExtremeSpam}, decision.Reasons...)
	case cents >= highRiskThreshold:
		decision.FeeMultiplier = 5
		decision.Reasons = append([]string{ReasonHighRisk}, decision.Reasons...)
	case cents >= warnThreshold:
		decision.FeeMultiplier = 2
		decision.Reasons = append([]string{ReasonSuspicious}, decision.Reasons...)
	}

	if !decision.Allow {
		log.Debugf("Denied tx from %s: suspicion %d/100, reasons %v",
			tx.Sender, cents, decision.Reasons)
	}
	return decision
}
