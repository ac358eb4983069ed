package guardian

import (
	"sync"
)

// burstWindowSec is the trailing window over which sender activity counts
// toward the burst feature.
const burstWindowSec = 60

// BurstTracker counts recent submissions per sender over a sliding window.
// Time is always passed in by the caller, so the resulting counts (and
// therefore the policy decisions built on them) are replayable.
type BurstTracker struct {
	mtx   sync.Mutex
	sends map[string][]int64
}

// NewBurstTracker returns an empty tracker.
func NewBurstTracker() *BurstTracker {
	return &BurstTracker{
		sends: make(map[string][]int64),
	}
}

// Count returns how many submissions the sender made inside the window
// ending at now.
func (t *BurstTracker) Count(sender string, now int64) int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.trim(sender, now))
}

// Record notes a submission from sender at now.
func (t *BurstTracker) Record(sender string, now int64) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.sends[sender] = append(t.trim(sender, now), now)
}

// trim drops entries older than the window and returns what remains. The
// caller must hold the mutex.
func (t *BurstTracker) trim(sender string, now int64) []int64 {
	recent := t.sends[sender][:0]
	for _, ts := range t.sends[sender] {
		if now-ts < burstWindowSec {
			recent = append(recent, ts)
		}
	}
	if len(recent) == 0 {
		delete(t.sends, sender)
		return nil
	}
	t.sends[sender] = recent
	return recent
}
