package model

// Status is the action a classifier recommends.
type Status string

const (
	StatusBuy  Status = "Buy"
	StatusSell Status = "Sell"
	StatusHold Status = "Hold"
	StatusWait Status = "Wait"
)

// RuleSet selects which classifier variant produced a decision.
type RuleSet string

const (
	// RuleSetRich is the four-rule structural classifier used for entries.
	RuleSetRich RuleSet = "rich"
	// RuleSetLean is the break/breakout health check used by the daily patrol.
	RuleSetLean RuleSet = "lean"
)

// SignalDecision is the output of one classifier evaluation.
type SignalDecision struct {
	Status      Status
	Score       int
	Pattern     string
	StopLoss    float64
	Target      float64
	Description string
	ATR         float64
	RuleSet     RuleSet
	// Swing is the last committed pivot, if any. Informational only.
	Swing *Pivot
}

func (d SignalDecision) IsBuy() bool  { return d.Status == StatusBuy }
func (d SignalDecision) IsSell() bool { return d.Status == StatusSell }
