package strategy

import (
	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/model"
)

// Minimum frame rows before each rule set will evaluate.
const (
	MinRowsRich = 100
	MinRowsLean = 60
)

// Analyze classifies the latest row of the frame with the chosen rule set.
// Only the last two rows are read. The first matching rule wins.
func Analyze(f *calculator.Frame, pivots []model.Pivot, ruleSet model.RuleSet) model.SignalDecision {
	rules, fallback, minRows := richRules, richDefault, MinRowsRich
	if ruleSet == model.RuleSetLean {
		rules, fallback, minRows = leanRules, leanDefault, MinRowsLean
	} else {
		ruleSet = model.RuleSetRich
	}

	if f == nil || f.Len() < minRows {
		return model.SignalDecision{
			Status:      model.StatusWait,
			Pattern:     "None",
			Description: "insufficient data",
			RuleSet:     ruleSet,
		}
	}

	snap := takeSnapshot(f)
	decision := fallback
	for _, r := range rules {
		if d, ok := r(snap); ok {
			decision = d
			break
		}
	}
	decision.ATR = snap.atr
	decision.RuleSet = ruleSet
	if len(pivots) > 0 {
		last := pivots[len(pivots)-1]
		decision.Swing = &last
	}
	return decision
}

var richDefault = model.SignalDecision{
	Status:      model.StatusWait,
	Pattern:     "None",
	Description: "no actionable structure",
}

var leanDefault = model.SignalDecision{
	Status:      model.StatusHold,
	Score:       50,
	Pattern:     "Consolidation",
	Description: "consolidating",
}

// Classifier scores a frame as of its last row.
type Classifier interface {
	Classify(f *calculator.Frame) model.SignalDecision
}

// RuleClassifier runs Analyze with a fixed rule set. Pivots are extracted
// only when WithPivots is set, since they add an O(n) pass per call.
type RuleClassifier struct {
	RuleSet    model.RuleSet
	WithPivots bool
	Deviation  float64
}

func (c RuleClassifier) Classify(f *calculator.Frame) model.SignalDecision {
	var pivots []model.Pivot
	if c.WithPivots && f != nil {
		dev := c.Deviation
		if dev <= 0 {
			dev = DefaultDeviation
		}
		pivots = ZigZag(f.Series(), dev)
	}
	return Analyze(f, pivots, c.RuleSet)
}
