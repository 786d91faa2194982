package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"WaveSentinel/internal/model"
)

func TestSummarize(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 100, Principal: 100, Benchmark: 100, Drawdown: 0},
		{Equity: 110, Principal: 100, Benchmark: 102, Drawdown: 0},
		{Equity: 99, Principal: 100, Benchmark: 101, Drawdown: -0.1},
		{Equity: 121, Principal: 100, Benchmark: 105, Drawdown: 0},
	}
	trades := []model.Trade{
		{Action: model.ActionBuy},
		{Action: model.ActionSell, PnL: 30},
		{Action: model.ActionBuy},
		{Action: model.ActionPartialSell, PnL: -10},
		{Action: model.ActionRebalance, PnL: 10},
		{Action: model.ActionSell, PnL: -20},
		{Action: model.ActionDeposit, Amount: 50},
	}

	s := Summarize(curve, trades)
	assert.InDelta(t, 121, s.FinalEquity, 1e-12)
	assert.InDelta(t, 0.21, s.TotalReturn, 1e-12)
	assert.InDelta(t, -0.1, s.MaxDrawdown, 1e-12)
	assert.InDelta(t, math.Pow(1.21, 252.0/4)-1, s.CAGR, 1e-9)
	assert.Greater(t, s.Sharpe, 0.0)

	assert.Equal(t, 2, s.Buys)
	assert.Equal(t, 4, s.Exits)
	assert.Equal(t, 2, s.Wins)
	assert.InDelta(t, 0.5, s.WinRate, 1e-12)
	assert.InDelta(t, 20.0/15.0, s.PayoffRatio, 1e-12)

	assert.InDelta(t, 0.05, s.BenchmarkReturn, 1e-12)
	assert.InDelta(t, 0.16, s.Alpha, 1e-12)
}

func TestSummarizeEdgeCases(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Equal(t, Summary{}, s)

	// no losing exits: the average loss defaults to one currency unit
	s = Summarize(nil, []model.Trade{{Action: model.ActionSell, PnL: 40}, {Action: model.ActionSell, PnL: 20}})
	assert.InDelta(t, 30, s.PayoffRatio, 1e-12)
	assert.InDelta(t, 1, s.WinRate, 1e-12)

	flat := []EquityPoint{{Equity: 50, Principal: 50}, {Equity: 50, Principal: 50}, {Equity: 50, Principal: 50}}
	s = Summarize(flat, nil)
	assert.Equal(t, 0.0, s.Sharpe)
	assert.Equal(t, 0.0, s.TotalReturn)
	assert.Equal(t, 0.0, s.BenchmarkReturn)
}
