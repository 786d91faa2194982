package clock

import (
	"sync"
	"time"
)

// Beijing is China Standard Time, UTC+8.
var Beijing = time.FixedZone("CST", 8*3600)

// Clock supplies "now" to anything that settles, stamps or schedules.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in Beijing time.
type System struct{}

func (System) Now() time.Time { return time.Now().In(Beijing) }

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{t: t} }

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// Today is the calendar day of c.Now() at midnight Beijing time.
func Today(c Clock) time.Time {
	y, m, d := c.Now().In(Beijing).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Beijing)
}
