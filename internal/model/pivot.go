package model

import "time"

// PivotKind labels a ZigZag turning point.
type PivotKind string

const (
	PivotStart PivotKind = "start"
	PivotHigh  PivotKind = "high"
	PivotLow   PivotKind = "low"
)

// Pivot is a confirmed swing point in a NAV series.
type Pivot struct {
	Index int
	Date  time.Time
	Value float64
	Kind  PivotKind
}
