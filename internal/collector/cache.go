package collector

import (
	"context"
	"sync"
	"time"

	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/model"
)

type cachedSeries struct {
	series  model.NAVSeries
	fetched time.Time
}

// CachedFetcher keeps NAV histories in memory for TTL. Estimates pass
// through uncached.
type CachedFetcher struct {
	Fetcher
	ttl   time.Duration
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]cachedSeries
}

func NewCachedFetcher(f Fetcher, ttl time.Duration, c clock.Clock) *CachedFetcher {
	if c == nil {
		c = clock.System{}
	}
	return &CachedFetcher{Fetcher: f, ttl: ttl, clock: c, entries: make(map[string]cachedSeries)}
}

func (c *CachedFetcher) FetchHistory(ctx context.Context, code string) (model.NAVSeries, error) {
	now := c.clock.Now()
	c.mu.Lock()
	e, ok := c.entries[code]
	c.mu.Unlock()
	if ok && now.Sub(e.fetched) < c.ttl {
		return e.series, nil
	}

	s, err := c.Fetcher.FetchHistory(ctx, code)
	if err != nil {
		return model.NAVSeries{}, err
	}
	c.mu.Lock()
	c.entries[code] = cachedSeries{series: s, fetched: now}
	c.mu.Unlock()
	return s, nil
}

// Invalidate drops every cached series.
func (c *CachedFetcher) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cachedSeries)
	c.mu.Unlock()
}
