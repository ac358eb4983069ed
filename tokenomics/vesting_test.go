package tokenomics

import (
	"testing"

	"github.com/ramianet/ramiad/chaincfg"
)

// TestVestingSchedule tests the cliff/linear vesting math across the
// allocation buckets.
func TestVestingSchedule(t *testing.T) {
	engine, _ := newTestEngine(t)
	genesis := chaincfg.SimNetParams.GenesisTimestamp
	month := int64(chaincfg.SecondsPerMonth)

	tests := []struct {
		name   string
		bucket string
		at     int64
		want   uint64
	}{
		{"liquidity vests fully at genesis", "liquidity", genesis, 5_000_000},
		{"team is zero before the cliff", "team", genesis + 11*month, 0},
		{"team is zero at the cliff boundary minus one", "team", genesis + 12*month - 1, 0},
		{"team starts at zero right at the cliff", "team", genesis + 12*month, 0},
		{"team is half way through at 18 of 36 months", "team", genesis + (12+18)*month, 7_500_000},
		{"team is fully vested after cliff plus duration", "team", genesis + (12+36)*month, 15_000_000},
		{"team stays fully vested afterwards", "team", genesis + 100*month, 15_000_000},
		{"founder is fully vested after 12+24 months", "founder", genesis + 36*month, 10_000_000},
		{"treasury quarter way at 6+12 months", "treasury", genesis + 18*month, 3_750_000},
		{"community pays through emission, not vesting", "community", genesis + 100*month, 0},
		{"market pays through emission, not vesting", "market", genesis + 100*month, 0},
	}

	for _, test := range tests {
		got, err := engine.Vested(test.bucket, test.at)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s: got %d, want %d", test.name, got, test.want)
		}
	}

	if _, err := engine.Vested("marketing", genesis); err == nil {
		t.Error("unknown bucket did not error")
	}
}

// TestBucketsReport tests the aggregate bucket status report.
func TestBucketsReport(t *testing.T) {
	engine, _ := newTestEngine(t)
	genesis := chaincfg.SimNetParams.GenesisTimestamp

	statuses := engine.Buckets(genesis)
	if len(statuses) != 6 {
		t.Fatalf("got %d buckets, want 6", len(statuses))
	}

	var total uint64
	emissionTotal := uint64(0)
	for _, status := range statuses {
		total += status.Total
		if status.FromEmission {
			emissionTotal += status.Total
		}
	}
	if total != 100_000_000 {
		t.Fatalf("bucket totals sum to %d, want 100000000", total)
	}
	if emissionTotal != 55_000_000 {
		t.Fatalf("emission-sourced buckets sum to %d, want 55000000", emissionTotal)
	}
}
