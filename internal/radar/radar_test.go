package radar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, clock.Beijing)

func linear(code string, n int, base, step float64) model.NAVSeries {
	pts := make([]model.PricePoint, n)
	for i := range pts {
		pts[i] = model.PricePoint{Date: start.AddDate(0, 0, i), Value: base + step*float64(i)}
	}
	return model.NAVSeries{Code: code, Points: pts}
}

// byCode returns a fixed decision per fund; others Hold.
type byCode map[string]model.SignalDecision

func (b byCode) Classify(f *calculator.Frame) model.SignalDecision {
	if d, ok := b[f.Code]; ok {
		return d
	}
	return model.SignalDecision{Status: model.StatusHold, Score: 50}
}

func newScanner(f collector.Fetcher, c byCode) *Scanner {
	clk := clock.NewFixed(start.AddDate(0, 0, 200).Add(14 * time.Hour))
	if c == nil {
		return NewScanner(collector.NewCollector(f, clk), nil)
	}
	return NewScanner(collector.NewCollector(f, clk), c)
}

func TestScanFiltersAndLimits(t *testing.T) {
	m := collector.NewMockFetcher()
	var funds []model.Fund
	decisions := byCode{}
	for i, score := range []int{90, 60, 85, 75, 70, 99} {
		code := string(rune('A' + i))
		m.Set(linear(code, 30, 1, 0))
		funds = append(funds, model.Fund{Code: code, Name: "fund " + code})
		decisions[code] = model.SignalDecision{Status: model.StatusBuy, Score: score}
	}
	decisions["C"] = model.SignalDecision{Status: model.StatusSell, Score: 85}
	funds = append(funds, model.Fund{Code: "missing"})

	s := newScanner(m, decisions)
	opts := DefaultScanOptions()
	opts.Limit = 3
	got := s.Scan(context.Background(), funds, 30000, opts)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Fund.Code)
	assert.Equal(t, "D", got[1].Fund.Code)
	assert.Equal(t, "E", got[2].Fund.Code)
	assert.Equal(t, 3000.0, got[0].SuggestedAmount)
	assert.Equal(t, 1.0, got[0].Price)

	opts.Limit = 0
	assert.Len(t, s.Scan(context.Background(), funds, 0, opts), 4)
}

func TestScanWithLeanRules(t *testing.T) {
	m := collector.NewMockFetcher()
	m.Set(linear("UP", 120, 1, 0.01))
	m.Set(linear("DOWN", 120, 3, -0.01))
	m.Estimates["UP"] = &model.Estimate{Code: "UP", Price: 2.5}

	s := newScanner(m, nil)
	got := s.Scan(context.Background(), []model.Fund{{Code: "DOWN"}, {Code: "UP"}}, 10000, DefaultScanOptions())
	require.Len(t, got, 1)
	assert.Equal(t, "UP", got[0].Fund.Code)
	assert.True(t, got[0].Decision.IsBuy())
	assert.GreaterOrEqual(t, got[0].Decision.Score, 70)
	assert.Equal(t, 2.5, got[0].Price)
}

func TestTotalAssets(t *testing.T) {
	doc := model.NewAccountDocument(1000)
	doc.Holdings = []model.HoldingDoc{{Shares: 100, Cost: 2}, {Shares: 10, Cost: 1.5}}
	assert.Equal(t, 1215.0, TotalAssets(doc))
}

func TestPatrol(t *testing.T) {
	m := collector.NewMockFetcher()
	m.Set(linear("SELL", 120, 1, 0))
	m.Set(linear("STOP", 120, 1, 0))
	m.Set(linear("OK", 120, 1, 0))
	m.Set(linear("PEND", 120, 1, 0))
	m.Estimates["STOP"] = &model.Estimate{Code: "STOP", Price: 0.9}

	doc := model.NewAccountDocument(0)
	doc.Holdings = []model.HoldingDoc{
		{Code: "SELL", Name: "甲"},
		{Code: "STOP", Name: "乙", StopLoss: 0.95},
		{Code: "OK", Name: "丙", StopLoss: 0.5},
		{Code: "GONE", Name: "丁"},
	}
	doc.PendingOrders = []model.PendingOrder{{Code: "PEND", Name: "戊"}}

	s := newScanner(m, byCode{
		"SELL": {Status: model.StatusSell, Score: -100, Description: "broke below life-line EMA89"},
		"PEND": {Status: model.StatusSell, Score: -90, Description: "broke below prior 20-period low"},
	})
	r := s.Patrol(context.Background(), doc, 2)
	assert.Equal(t, 5, r.Checked)
	require.Len(t, r.Failed, 1)
	assert.Equal(t, "GONE", r.Failed[0].Code)

	require.Len(t, r.Alerts, 3)
	assert.Equal(t, KindHolding, r.Alerts[0].Kind)
	assert.Equal(t, "broke below life-line EMA89", r.Alerts[0].Reason)
	assert.False(t, r.Alerts[0].StopHit)

	assert.Equal(t, "STOP", r.Alerts[1].Fund.Code)
	assert.Equal(t, 0.9, r.Alerts[1].Price)
	assert.True(t, r.Alerts[1].StopHit)
	assert.Equal(t, "跌破止损位(0.9500)", r.Alerts[1].Reason)

	assert.Equal(t, KindPending, r.Alerts[2].Kind)
	assert.Equal(t, "戊", r.Alerts[2].Fund.Name)
}

func TestRegime(t *testing.T) {
	m := collector.NewMockFetcher()
	m.Set(linear("000300", 150, 1, 0.01))
	m.Set(linear("000905", 150, 3, -0.01))
	m.Set(linear("002987", 100, 1, 0.01)) // too short

	r := Regime(context.Background(), m)
	assert.InDelta(t, 0.2, r.Score, 1e-12)
	assert.Equal(t, "❄️ 极寒/底部", r.Label)
	require.Len(t, r.Indices, 5)
	assert.True(t, r.Indices[0].Known)
	assert.True(t, r.Indices[0].Bullish)
	assert.True(t, r.Indices[1].Known)
	assert.False(t, r.Indices[1].Bullish)
	assert.False(t, r.Indices[2].Known)

	assert.Equal(t, 1, IndexTrend(context.Background(), m))
	assert.Equal(t, 0, IndexTrend(context.Background(), collector.NewMockFetcher()))
}

func TestRegimeLabel(t *testing.T) {
	assert.Equal(t, "🔥 全面牛市", RegimeLabel(1))
	assert.Equal(t, "🔥 全面牛市", RegimeLabel(0.8))
	assert.Equal(t, "📈 结构性牛市", RegimeLabel(0.6))
	assert.Equal(t, "震荡/分化", RegimeLabel(0.4))
	assert.Equal(t, "❄️ 极寒/底部", RegimeLabel(0.2))
	assert.Equal(t, "❄️ 极寒/底部", RegimeLabel(0))
}

func TestSectorRankings(t *testing.T) {
	m := collector.NewMockFetcher()
	m.Set(linear("012885", 30, 1, 0.01))
	m.Set(linear("001595", 30, 2, -0.01))
	m.Set(linear("003095", 20, 1, 0.05)) // one row short

	got := SectorRankings(context.Background(), m)
	require.Len(t, got, len(collector.SectorPool))
	assert.Equal(t, "012885", got[0].Sector.Code)
	assert.InDelta(t, 1.29/1.10-1, got[0].Momentum, 1e-12)
	assert.Equal(t, "001595", got[1].Sector.Code)
	assert.Less(t, got[1].Momentum, 0.0)
	for _, s := range got[2:] {
		assert.False(t, s.Known)
		assert.Equal(t, MissingMomentum, s.Momentum)
	}
}
