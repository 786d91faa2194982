package backtest

import (
	"errors"
	"fmt"
	"time"

	"WaveSentinel/internal/model"
	"WaveSentinel/internal/position"
	"WaveSentinel/internal/strategy"
)

// Config drives one portfolio simulation.
type Config struct {
	InitialCapital float64
	MaxHoldings    int
	MaxDailyBuys   int
	MonthlyDeposit float64

	Rebalance    bool
	RebalanceGap int // in simulation steps

	DeadMoney     bool
	DeadMoneyDays int
	DeadMoneyBand float64

	PartialProfit float64 // 0 disables the half-position lock
	Sizing        strategy.SizingModel

	EntryScore     int
	MinCash        float64
	MinTrade       float64
	SettlementDays int
	MinHistory     int

	MomentumWindow int
	MomentumTopN   int
	MomentumGate   bool

	DedupeUnderlying bool

	HardStop         float64
	TrailingStop     float64
	TrailingActivate float64

	Fees    position.FeeSchedule
	RuleSet model.RuleSet

	Start time.Time
	End   time.Time

	// Benchmark is bought with the initial capital and every deposit.
	Benchmark *Instrument

	// Classifier overrides the rule classifier built from RuleSet.
	Classifier strategy.Classifier
}

// DefaultConfig mirrors the dashboard's time-machine defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   model.DefaultCapital,
		MaxHoldings:      10,
		MaxDailyBuys:     3,
		Rebalance:        true,
		RebalanceGap:     60,
		DeadMoney:        true,
		DeadMoneyDays:    40,
		DeadMoneyBand:    0.03,
		PartialProfit:    0.15,
		Sizing:           strategy.SizingKelly,
		EntryScore:       80,
		MinCash:          2000,
		MinTrade:         100,
		SettlementDays:   1,
		MinHistory:       130,
		MomentumWindow:   120,
		MomentumTopN:     50,
		MomentumGate:     true,
		DedupeUnderlying: true,
		HardStop:         0.08,
		TrailingStop:     0.08,
		TrailingActivate: 1.05,
		Fees:             position.DefaultFees,
		RuleSet:          model.RuleSetRich,
	}
}

var ErrInvalidConfig = errors.New("invalid backtest config")

// Validate checks ranges that would otherwise make the loop misbehave.
func (c Config) Validate() error {
	var problems []string
	if c.InitialCapital <= 0 {
		problems = append(problems, "initial capital must be positive")
	}
	if c.MaxHoldings <= 0 {
		problems = append(problems, "max holdings must be positive")
	}
	if c.MaxDailyBuys <= 0 {
		problems = append(problems, "max daily buys must be positive")
	}
	if c.MonthlyDeposit < 0 {
		problems = append(problems, "monthly deposit must not be negative")
	}
	if c.Rebalance && c.RebalanceGap <= 0 {
		problems = append(problems, "rebalance gap must be positive")
	}
	if c.PartialProfit < 0 {
		problems = append(problems, "partial profit threshold must not be negative")
	}
	if c.SettlementDays < 0 {
		problems = append(problems, "settlement days must not be negative")
	}
	if c.MomentumWindow <= 0 || c.MomentumTopN <= 0 {
		problems = append(problems, "momentum window and top-n must be positive")
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		problems = append(problems, "end date is before start date")
	}
	switch c.Sizing {
	case strategy.SizingFixed, strategy.SizingATR, strategy.SizingKelly, strategy.SizingEqual:
	default:
		problems = append(problems, fmt.Sprintf("unknown sizing model %q", c.Sizing))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, problems)
	}
	return nil
}

func (c Config) classifier() strategy.Classifier {
	if c.Classifier != nil {
		return c.Classifier
	}
	rs := c.RuleSet
	if rs == "" {
		rs = model.RuleSetRich
	}
	return strategy.RuleClassifier{RuleSet: rs}
}
