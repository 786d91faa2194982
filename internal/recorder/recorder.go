package recorder

import (
	"time"

	"WaveSentinel/internal/backtest"
	"WaveSentinel/internal/model"
)

// Signal sources.
const (
	SourceRadar  = "radar"
	SourcePatrol = "patrol"
	SourceCLI    = "cli"
)

// SignalEvent is one classifier decision worth keeping.
type SignalEvent struct {
	At       time.Time
	Source   string
	Fund     model.Fund
	Price    float64
	Decision model.SignalDecision
	// Note carries the alert reason for patrol events.
	Note string
}

// BacktestRun is a finished simulation with its trade log.
type BacktestRun struct {
	// ID is assigned on record when empty.
	ID      string
	At      time.Time
	Kind    string // "portfolio", "single" or "sweep"
	Pool    string
	Start   time.Time
	End     time.Time
	Sizing  string
	Summary backtest.Summary
	Trades  []model.Trade
}

// RunRow is a stored run without its trades.
type RunRow struct {
	ID          string
	At          time.Time
	Kind        string
	Pool        string
	TotalReturn float64
	MaxDrawdown float64
	Sharpe      float64
	Trades      int
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSignal(evt *SignalEvent) error
	RecordBacktest(run *BacktestRun) (string, error)
	RecentRuns(limit int) ([]RunRow, error)
	Close() error
}
