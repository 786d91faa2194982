package strategy

import (
	"math"

	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/model"
)

// snapshot is the slice of the frame a rule may look at: the current row plus
// the channel bounds and oscillator as of the previous close.
type snapshot struct {
	rows     int
	price    float64
	ema21    float64
	ema55    float64
	ema89    float64
	rsi      float64
	atr      float64
	ao       float64
	aoPrev   float64
	high20   float64
	low20    float64
	priceMax float64
	aoMax    float64
}

const divergenceWindow = 60

func takeSnapshot(f *calculator.Frame) snapshot {
	last := f.Last()
	s := snapshot{
		rows:   f.Len(),
		price:  f.Value[last],
		ema21:  f.EMA21[last],
		ema55:  f.EMA55[last],
		ema89:  f.EMA89[last],
		rsi:    f.RSI[last],
		atr:    f.ATR[last],
		ao:     f.AO[last],
		aoPrev: f.AOPrev[last],
		high20: f.High20[last-1],
		low20:  f.Low20[last-1],
	}
	if math.IsNaN(s.atr) {
		s.atr = 0
	}
	if s.rows > divergenceWindow {
		s.priceMax = calculator.WindowMax(f.Value, divergenceWindow)
		s.aoMax = calculator.WindowMax(f.AO, divergenceWindow)
	}
	return s
}

// rule returns a decision and true when it matches.
type rule func(s snapshot) (model.SignalDecision, bool)

// bearishFilter parks anything under the life-line unless RSI is already
// exhausted at or below 30.
func bearishFilter(s snapshot) (model.SignalDecision, bool) {
	if s.price < s.ema89 && s.rsi > 30 {
		return model.SignalDecision{
			Status:      model.StatusWait,
			Pattern:     "Bearish",
			Description: "below life-line EMA89",
		}, true
	}
	return model.SignalDecision{}, false
}

func structureBreakout(s snapshot) (model.SignalDecision, bool) {
	if s.price > s.high20 && s.ao > 0 && s.ao > s.aoPrev {
		return model.SignalDecision{
			Status:      model.StatusBuy,
			Score:       85,
			Pattern:     "Structure Breakout",
			Description: "new 20-period high with rising momentum",
			StopLoss:    s.low20,
			Target:      s.price * 1.3,
		}, true
	}
	return model.SignalDecision{}, false
}

func trendPullback(s snapshot) (model.SignalDecision, bool) {
	if s.ema21 > s.ema55 && s.price < s.ema21 && s.price > s.ema55 && s.ao > 0 {
		return model.SignalDecision{
			Status:      model.StatusBuy,
			Score:       80,
			Pattern:     "Trend Pullback",
			Description: "pullback into EMA21/EMA55 uptrend channel",
			StopLoss:    s.ema89,
			Target:      s.price * 1.2,
		}, true
	}
	return model.SignalDecision{}, false
}

// topDivergence flags a marginal new high that momentum fails to confirm.
func topDivergence(s snapshot) (model.SignalDecision, bool) {
	if s.rows <= divergenceWindow {
		return model.SignalDecision{}, false
	}
	if s.price >= s.priceMax*0.99 && s.ao < s.aoMax*0.7 {
		return model.SignalDecision{
			Status:      model.StatusSell,
			Score:       -95,
			Pattern:     "Wave 5 Divergence",
			Description: "price at highs but momentum fading",
		}, true
	}
	return model.SignalDecision{}, false
}

var richRules = []rule{bearishFilter, structureBreakout, trendPullback, topDivergence}

func lifeLineBreak(s snapshot) (model.SignalDecision, bool) {
	if s.price < s.ema89 {
		return model.SignalDecision{
			Status:      model.StatusSell,
			Score:       -100,
			Pattern:     "Life-line Break",
			Description: "broke below life-line EMA89",
		}, true
	}
	return model.SignalDecision{}, false
}

func supportBreak(s snapshot) (model.SignalDecision, bool) {
	if s.price < s.low20 {
		return model.SignalDecision{
			Status:      model.StatusSell,
			Score:       -90,
			Pattern:     "Support Break",
			Description: "broke below prior 20-period low",
		}, true
	}
	return model.SignalDecision{}, false
}

func leanBreakout(s snapshot) (model.SignalDecision, bool) {
	if !(s.price > s.high20) {
		return model.SignalDecision{}, false
	}
	if s.ao > 0 && s.ao > s.aoPrev {
		return model.SignalDecision{
			Status:      model.StatusBuy,
			Score:       85,
			Pattern:     "Structure Breakout",
			Description: "new 20-period high with rising momentum",
		}, true
	}
	return model.SignalDecision{
		Status:      model.StatusBuy,
		Score:       75,
		Pattern:     "Breakout Unconfirmed",
		Description: "new 20-period high, momentum not confirmed",
	}, true
}

var leanRules = []rule{lifeLineBreak, supportBreak, leanBreakout}
