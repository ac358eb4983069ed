package tokenomics

import (
	"github.com/pkg/errors"

	"github.com/ramianet/ramiad/chaincfg"
)

// Vested returns how much of the named allocation bucket has vested at the
// given unix time.
//
// Buckets without a cliff or duration vest in full at genesis. Buckets
// sourced from the emission pool (community, market) are paid out through
// block subsidies rather than vesting math, so their vested amount is
// always zero here; their progress is visible in the emission state.
func (e *Engine) Vested(bucketName string, nowTs int64) (uint64, error) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()

	for i := range e.params.Buckets {
		bucket := &e.params.Buckets[i]
		if bucket.Name != bucketName {
			continue
		}
		return vestedAmount(bucket, e.state.GenesisTs, nowTs), nil
	}
	return 0, errors.Errorf("unknown allocation bucket %q", bucketName)
}

// vestedAmount computes the vested portion of one bucket: nothing before
// the cliff, then linear over the duration, then the full total.
func vestedAmount(bucket *chaincfg.AllocationBucket, startTs, nowTs int64) uint64 {
	if bucket.FromEmission {
		return 0
	}
	if bucket.CliffMonths == 0 && bucket.DurationMonths == 0 {
		return bucket.Total
	}

	cliffEnd := startTs + int64(bucket.CliffMonths)*chaincfg.SecondsPerMonth
	if nowTs < cliffEnd {
		return 0
	}
	if bucket.DurationMonths == 0 {
		return bucket.Total
	}

	elapsed := nowTs - cliffEnd
	duration := int64(bucket.DurationMonths) * chaincfg.SecondsPerMonth
	if elapsed >= duration {
		return bucket.Total
	}
	return bucket.Total * uint64(elapsed) / uint64(duration)
}

// BucketStatus reports one bucket's allocation and its vested amount at a
// point in time.
type BucketStatus struct {
	Name         string `json:"name"`
	Total        uint64 `json:"total"`
	Vested       uint64 `json:"vested"`
	FromEmission bool   `json:"from_emission"`
}

// Buckets returns the status of every allocation bucket at the given time.
func (e *Engine) Buckets(nowTs int64) []BucketStatus {
	e.mtx.RLock()
	defer e.mtx.RUnlock()

	statuses := make([]BucketStatus, 0, len(e.params.Buckets))
	for i := range e.params.Buckets {
		bucket := &e.params.Buckets[i]
		statuses = append(statuses, BucketStatus{
			Name:         bucket.Name,
			Total:        bucket.Total,
			Vested:       vestedAmount(bucket, e.state.GenesisTs, nowTs),
			FromEmission: bucket.FromEmission,
		})
	}
	return statuses
}
