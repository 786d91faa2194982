package collector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu        sync.Mutex
	History   map[string]model.NAVSeries
	Estimates map[string]*model.Estimate
	Errors    map[string]error
	// Delay is applied to every history call and honours ctx cancellation.
	Delay time.Duration

	historyCalls int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		History:   make(map[string]model.NAVSeries),
		Estimates: make(map[string]*model.Estimate),
		Errors:    make(map[string]error),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(ctx context.Context, code string) (model.NAVSeries, error) {
	m.mu.Lock()
	m.historyCalls++
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.NAVSeries{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[code]; ok {
		return model.NAVSeries{}, err
	}
	s, ok := m.History[code]
	if !ok || s.Empty() {
		return model.NAVSeries{}, fmt.Errorf("mock history %s: %w", code, ErrNoData)
	}
	return s, nil
}

func (m *MockFetcher) FetchEstimate(_ context.Context, code string) (*model.Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Estimates[code]
	if !ok {
		return nil, fmt.Errorf("mock estimate %s: %w", code, ErrNoData)
	}
	cp := *e
	return &cp, nil
}

// HistoryCalls reports how many history requests were made.
func (m *MockFetcher) HistoryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyCalls
}

// Set stores a series for code.
func (m *MockFetcher) Set(s model.NAVSeries) {
	m.mu.Lock()
	m.History[s.Code] = s
	m.mu.Unlock()
}

// Snapshot is a fund's history, indicators and current price at one moment.
type Snapshot struct {
	Fund     model.Fund
	Series   model.NAVSeries
	Frame    *calculator.Frame
	Estimate *model.Estimate
	// Price is today's official NAV when published, else the estimate, else
	// the last official NAV.
	Price        float64
	UsedEstimate bool
}

// Collector orchestrates data fetching and indicator computation.
type Collector struct {
	Fetcher Fetcher
	Clock   clock.Clock
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, c clock.Clock) *Collector {
	if c == nil {
		c = clock.System{}
	}
	return &Collector{Fetcher: fetcher, Clock: c}
}

// Collect fetches history and the intraday estimate, then computes all
// indicators. With appendEstimate the estimate becomes the last row when the
// official NAV for today is not out yet.
func (c *Collector) Collect(ctx context.Context, fund model.Fund, appendEstimate bool) (*Snapshot, error) {
	series, err := c.Fetcher.FetchHistory(ctx, fund.Code)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	est, err := c.Fetcher.FetchEstimate(ctx, fund.Code)
	if err != nil {
		log.Printf("[WARN] estimate for %s unavailable: %v", fund.Code, err)
		est = nil
	}

	snap := &Snapshot{Fund: fund, Series: series, Estimate: est}
	snap.Price, snap.UsedEstimate = SmartPrice(series, est, clock.Today(c.Clock))
	if appendEstimate && snap.UsedEstimate {
		snap.Series = series.WithEstimate(c.Clock.Now(), est.Price)
	}

	frame, err := calculator.Compute(snap.Series)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", fund.Code, err)
	}
	snap.Frame = frame
	return snap, nil
}

// SmartPrice picks the best current price: the official NAV if it is dated
// today, otherwise the estimate, otherwise the last official NAV. It returns
// 0 when nothing is known.
func SmartPrice(series model.NAVSeries, est *model.Estimate, today time.Time) (float64, bool) {
	last, ok := series.Last()
	if ok && model.SameDay(last.Date, today) {
		return last.Value, false
	}
	if est != nil && est.Price > 0 {
		return est.Price, true
	}
	if ok {
		return last.Value, false
	}
	return 0, false
}
