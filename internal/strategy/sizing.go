package strategy

import (
	"fmt"
	"math"
	"strings"
)

// SizingModel selects how much equity a new entry receives.
type SizingModel string

const (
	SizingFixed SizingModel = "Fixed"
	SizingATR   SizingModel = "ATR"
	SizingKelly SizingModel = "Kelly"
	SizingEqual SizingModel = "Equal"
)

const (
	// KellyWinRate and KellyPayoff are the assumed edge for half-Kelly sizing.
	KellyWinRate = 0.55
	KellyPayoff  = 2.5

	RiskPerTrade      = 0.01
	MaxPositionWeight = 0.30
	FixedFraction     = 0.20
	MaxEqualWeight    = 0.33
)

// ParseSizingModel accepts a model name case-insensitively.
func ParseSizingModel(s string) (SizingModel, error) {
	for _, m := range []SizingModel{SizingFixed, SizingATR, SizingKelly, SizingEqual} {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sizing model %q", s)
}

// Kelly returns the Kelly fraction (b·p − q)/b for win rate p and payoff b,
// floored at zero.
func Kelly(p, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return math.Max(0, (b*p-(1-p))/b)
}

// SizingInput carries what a sizing model may consult.
type SizingInput struct {
	Equity         float64
	Cash           float64
	InitialCapital float64
	Price          float64
	ATR            float64
	MaxHoldings    int
}

// PositionSize returns the amount to spend on a new entry, never more than
// the available cash.
func PositionSize(m SizingModel, in SizingInput) float64 {
	var amt float64
	switch m {
	case SizingFixed:
		amt = in.InitialCapital * FixedFraction
	case SizingKelly:
		amt = math.Min(in.Equity*0.5*Kelly(KellyWinRate, KellyPayoff), in.Equity*MaxPositionWeight)
	case SizingATR:
		if in.ATR > 0 && !math.IsNaN(in.ATR) {
			shares := in.Equity * RiskPerTrade / (2 * in.ATR)
			amt = math.Min(shares*in.Price, in.Equity*MaxPositionWeight)
		} else {
			amt = equalWeight(in)
		}
	default:
		amt = equalWeight(in)
	}
	return math.Max(0, math.Min(amt, in.Cash))
}

func equalWeight(in SizingInput) float64 {
	ratio := MaxEqualWeight
	if in.MaxHoldings > 0 {
		ratio = math.Min(MaxEqualWeight, 2.0/float64(in.MaxHoldings))
	}
	return in.Equity * ratio
}
