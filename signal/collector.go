package signal

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Collector is the abstract capability the core depends on for congestion
// signals. Timeout and retry policy are owned by the implementation; the
// caller only sees a snapshot or an error.
type Collector interface {
	// Fetch returns a fresh congestion snapshot.
	Fetch() (*Snapshot, error)
}

// Static is a Collector that always returns a fixed snapshot. It backs
// nodes configured without an external signal source, and tests use it to
// pin pressure values.
type Static struct {
	Snapshot *Snapshot
}

// Fetch implements the Collector interface.
func (s *Static) Fetch() (*Snapshot, error) {
	if s.Snapshot == nil {
		return nil, errors.New("no static snapshot configured")
	}
	snapshot := *s.Snapshot
	return &snapshot, nil
}

// Cache wraps a Collector with a TTL cache and the fallback ladder the
// engine requires: a fresh fetch when the cache is stale, the last cached
// snapshot when the fetch fails, and a zero-pressure snapshot when nothing
// has ever been fetched. Fetch errors never escape; they are logged and
// absorbed here.
type Cache struct {
	mtx       sync.Mutex
	collector Collector
	ttl       time.Duration
	now       func() time.Time

	last        *Snapshot
	lastFetched time.Time
}

// NewCache returns a Cache around the given collector with the given TTL.
func NewCache(collector Collector, ttl time.Duration) *Cache {
	return &Cache{
		collector: collector,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Current returns the snapshot to bind to the next block: the cached one
// while it is fresh, otherwise the result of a new fetch. This blocks on
// collector I/O and therefore must be called outside any chain lock.
func (c *Cache) Current() *Snapshot {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	now := c.now()
	if c.last != nil && now.Sub(c.lastFetched) < c.ttl {
		return c.last
	}

	snapshot, err := c.collector.Fetch()
	if err != nil {
		if c.last != nil {
			log.Debugf("Signal fetch failed, using cached snapshot "+
				"from %d: %s", c.last.CapturedAt, err)
			return c.last
		}
		log.Debugf("Signal fetch failed with no cached snapshot, "+
			"using zero pressure: %s", err)
		return ZeroSnapshot(now.Unix())
	}

	c.last = snapshot
	c.lastFetched = now
	return snapshot
}
