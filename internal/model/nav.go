package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNonMonotonic is returned when a series has duplicate or out-of-order dates.
var ErrNonMonotonic = errors.New("nav series dates must be strictly increasing")

// PricePoint is a single NAV observation.
type PricePoint struct {
	Date  time.Time
	Value float64
}

// NAVSeries is a time-ordered NAV history for one fund.
type NAVSeries struct {
	Code   string
	Points []PricePoint
}

func (s NAVSeries) Len() int { return len(s.Points) }

func (s NAVSeries) Empty() bool { return len(s.Points) == 0 }

// Validate checks that dates are strictly increasing.
func (s NAVSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("%s at index %d (%s): %w",
				s.Code, i, s.Points[i].Date.Format(DateLayout), ErrNonMonotonic)
		}
	}
	return nil
}

// Values returns the NAV column.
func (s NAVSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Dates returns the date column.
func (s NAVSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date
	}
	return out
}

// Last returns the most recent point.
func (s NAVSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// IndexOf finds the point dated exactly on the given calendar day.
func (s NAVSeries) IndexOf(day time.Time) (int, bool) {
	i := s.searchDay(day)
	if i < len(s.Points) && SameDay(s.Points[i].Date, day) {
		return i, true
	}
	return -1, false
}

// IndexAtOrBefore returns the last index whose date is on or before day.
func (s NAVSeries) IndexAtOrBefore(day time.Time) (int, bool) {
	i := s.searchDay(day)
	if i < len(s.Points) && SameDay(s.Points[i].Date, day) {
		return i, true
	}
	if i == 0 {
		return -1, false
	}
	return i - 1, true
}

// searchDay returns the first index whose calendar day is not before day.
func (s NAVSeries) searchDay(day time.Time) int {
	d := TruncateDay(day)
	return sort.Search(len(s.Points), func(i int) bool {
		return !TruncateDay(s.Points[i].Date).Before(d)
	})
}

// WithEstimate returns a copy with an intraday estimate appended. The series is
// returned unchanged when it already holds a point for that day or later.
func (s NAVSeries) WithEstimate(at time.Time, value float64) NAVSeries {
	pts := make([]PricePoint, len(s.Points), len(s.Points)+1)
	copy(pts, s.Points)
	if n := len(pts); n > 0 && (SameDay(pts[n-1].Date, at) || !at.After(pts[n-1].Date)) {
		return NAVSeries{Code: s.Code, Points: pts}
	}
	pts = append(pts, PricePoint{Date: at, Value: value})
	return NAVSeries{Code: s.Code, Points: pts}
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "2006-01-02 15:04:05"
)

// TruncateDay drops the time-of-day, keeping the location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
