package backtest

import (
	"sort"
	"time"

	"WaveSentinel/internal/calculator"
)

// Instrument is one fund's precomputed indicator frame. Frames are read-only
// and may be shared by concurrent runs.
type Instrument struct {
	Code  string
	Name  string
	Frame *calculator.Frame
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func monthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}

type track struct {
	Instrument
	keys []int
	rows map[int]int
}

func newTrack(inst Instrument) *track {
	t := &track{Instrument: inst, rows: make(map[int]int)}
	if inst.Frame == nil {
		return t
	}
	t.keys = make([]int, len(inst.Frame.Dates))
	for i, d := range inst.Frame.Dates {
		k := dayKey(d)
		t.keys[i] = k
		t.rows[k] = i
	}
	return t
}

// at returns the row dated exactly on day.
func (t *track) at(day int) (int, bool) {
	i, ok := t.rows[day]
	return i, ok
}

// pad returns the last row dated on or before day.
func (t *track) pad(day int) (int, bool) {
	i := sort.SearchInts(t.keys, day+1) - 1
	return i, i >= 0
}

func (t *track) value(row int) float64 { return t.Frame.Value[row] }

// padValue is the last known value on or before day, or 0.
func (t *track) padValue(day int) float64 {
	if t == nil || t.Frame == nil {
		return 0
	}
	if i, ok := t.pad(day); ok {
		return t.value(i)
	}
	return 0
}
