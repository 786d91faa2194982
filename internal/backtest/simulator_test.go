package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/strategy"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func dateAt(row int) time.Time { return day0.AddDate(0, 0, row) }

func instrument(code, name string, values []float64) Instrument {
	pts := make([]model.PricePoint, len(values))
	for i, v := range values {
		pts[i] = model.PricePoint{Date: dateAt(i), Value: v}
	}
	return Instrument{Code: code, Name: name, Frame: calculator.MustCompute(model.NAVSeries{Code: code, Points: pts})}
}

// steps returns n values equal to base, switching to jump from row at onward.
func steps(n int, base float64, at int, jump float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base
		if at >= 0 && i >= at {
			out[i] = jump
		}
	}
	return out
}

// scripted emits decisions keyed by fund code and frame length; every
// other evaluation is Hold.
type scripted map[string]map[int]model.SignalDecision

func (s scripted) Classify(f *calculator.Frame) model.SignalDecision {
	if d, ok := s[f.Code][f.Len()]; ok {
		return d
	}
	return model.SignalDecision{Status: model.StatusHold, Score: 50}
}

func buy(score int) model.SignalDecision {
	return model.SignalDecision{Status: model.StatusBuy, Score: score, Description: "scripted entry"}
}

var sellSignal = model.SignalDecision{Status: model.StatusSell, Score: -95, Description: "scripted exit"}

func baseConfig(c strategy.Classifier) Config {
	cfg := DefaultConfig()
	cfg.Sizing = strategy.SizingFixed
	cfg.Rebalance = false
	cfg.DeadMoney = false
	cfg.PartialProfit = 0
	cfg.MomentumGate = false
	cfg.Start = dateAt(130)
	cfg.Classifier = c
	return cfg
}

func tradesOf(trades []model.Trade, action model.TradeAction) []model.Trade {
	var out []model.Trade
	for _, t := range trades {
		if t.Action == action {
			out = append(out, t)
		}
	}
	return out
}

func TestRunRoundTrip(t *testing.T) {
	a := instrument("000001", "Alpha Growth C", steps(200, 1.0, 170, 1.15))
	cls := scripted{"000001": {141: buy(85), 176: sellSignal}}

	res, err := Run([]Instrument{a}, baseConfig(cls))
	require.NoError(t, err)
	require.Len(t, res.Equity, 70)
	require.Len(t, res.Trades, 2)

	in, out := res.Trades[0], res.Trades[1]
	assert.Equal(t, model.ActionBuy, in.Action)
	assert.True(t, in.Date.Equal(dateAt(140)))
	assert.InDelta(t, 4000, in.Amount, 1e-9)
	assert.InDelta(t, 4000, in.Shares, 1e-9)
	assert.Equal(t, "scripted entry (Fixed)", in.Reason)

	assert.Equal(t, model.ActionSell, out.Action)
	assert.True(t, out.Date.Equal(dateAt(175)))
	assert.Equal(t, "scripted exit", out.Reason)
	assert.InDelta(t, 0, out.Fee, 1e-9)
	assert.InDelta(t, 4600, out.Amount, 1e-9)
	assert.InDelta(t, 600, out.PnL, 1e-9)

	last := res.Equity[len(res.Equity)-1]
	assert.InDelta(t, 20600, last.Equity, 1e-6)
	assert.InDelta(t, 0.03, res.Summary.TotalReturn, 1e-9)
	assert.Equal(t, 1, res.Summary.Wins)

	peak := DefaultConfig().InitialCapital
	for _, p := range res.Equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		assert.LessOrEqual(t, p.Drawdown, 0.0)
		assert.InDelta(t, (p.Equity-peak)/peak, p.Drawdown, 1e-12)
	}
}

func TestRunProceedsSettleNextDay(t *testing.T) {
	a := instrument("A", "Alpha", steps(200, 1.0, 170, 1.15))
	b := instrument("B", "Beta", steps(200, 1.0, -1, 0))
	cls := scripted{
		"A": {141: buy(85), 176: sellSignal},
		"B": {176: buy(90), 177: buy(90)},
	}
	cfg := baseConfig(cls)
	cfg.MinCash = 17000

	res, err := Run([]Instrument{a, b}, cfg)
	require.NoError(t, err)

	buys := tradesOf(res.Trades, model.ActionBuy)
	require.Len(t, buys, 2)
	assert.Equal(t, "B", buys[1].Code)
	// cash is 16000 on the sale day; the 4600 receivable unlocks a day later
	assert.True(t, buys[1].Date.Equal(dateAt(176)), "got %s", buys[1].Date)

	// the receivable still counts towards equity on the sale day
	assert.InDelta(t, 20600, res.Equity[175-130].Equity, 1e-6)
}

func TestSettleReleasesOnUnlockDate(t *testing.T) {
	s := &simulation{cash: 100, receivables: []Receivable{
		{UnlockDate: dateAt(1), Amount: 50},
		{UnlockDate: dateAt(3), Amount: 25},
	}}
	s.settle(dateAt(0))
	assert.Equal(t, 100.0, s.cash)
	assert.InDelta(t, 75, s.pending(), 1e-12)

	s.settle(dateAt(1).Add(9 * time.Hour))
	assert.Equal(t, 150.0, s.cash)
	require.Len(t, s.receivables, 1)

	s.settle(dateAt(5))
	assert.Equal(t, 175.0, s.cash)
	assert.Empty(t, s.receivables)
}

func TestRunPartialProfit(t *testing.T) {
	t.Run("half then rest", func(t *testing.T) {
		a := instrument("A", "Alpha", steps(200, 1.0, 160, 1.2))
		cls := scripted{"A": {141: buy(85), 171: sellSignal}}
		cfg := baseConfig(cls)
		cfg.PartialProfit = 0.10

		res, err := Run([]Instrument{a}, cfg)
		require.NoError(t, err)
		require.Len(t, res.Trades, 3)

		half := res.Trades[1]
		assert.Equal(t, model.ActionPartialSell, half.Action)
		assert.True(t, half.Date.Equal(dateAt(160)))
		assert.InDelta(t, 2000, half.Shares, 1e-9)
		assert.InDelta(t, 400, half.PnL, 1e-9)
		assert.Equal(t, "Partial Lock (+10%)", half.Reason)

		rest := res.Trades[2]
		assert.Equal(t, model.ActionSell, rest.Action)
		assert.InDelta(t, 2000, rest.Shares, 1e-9)
		assert.InDelta(t, 400, rest.PnL, 1e-9)
	})

	t.Run("close wins over partial", func(t *testing.T) {
		a := instrument("A", "Alpha", steps(200, 1.0, 160, 1.2))
		cls := scripted{"A": {141: buy(85), 161: sellSignal}}
		cfg := baseConfig(cls)
		cfg.PartialProfit = 0.10

		res, err := Run([]Instrument{a}, cfg)
		require.NoError(t, err)
		require.Len(t, res.Trades, 2)
		assert.Equal(t, model.ActionSell, res.Trades[1].Action)
		assert.InDelta(t, 4000, res.Trades[1].Shares, 1e-9)
	})
}

func TestRunExitPriority(t *testing.T) {
	t.Run("target", func(t *testing.T) {
		a := instrument("A", "Alpha", steps(200, 1.0, 150, 1.3))
		entry := buy(85)
		entry.Target = 1.25
		entry.StopLoss = 0.5
		// the classifier also says Sell that day; the target is checked first
		cls := scripted{"A": {141: entry, 151: sellSignal}}

		res, err := Run([]Instrument{a}, baseConfig(cls))
		require.NoError(t, err)
		require.Len(t, res.Trades, 2)
		assert.Equal(t, "Target Profit Hit (Goal)", res.Trades[1].Reason)
	})

	t.Run("hard stop", func(t *testing.T) {
		a := instrument("A", "Alpha", steps(200, 1.0, 150, 0.9))
		cls := scripted{"A": {141: buy(85)}}

		res, err := Run([]Instrument{a}, baseConfig(cls))
		require.NoError(t, err)
		require.Len(t, res.Trades, 2)
		assert.Equal(t, "Structure Break", res.Trades[1].Reason)
		assert.True(t, res.Trades[1].Date.Equal(dateAt(150)))
	})

	t.Run("dead money", func(t *testing.T) {
		a := instrument("A", "Alpha", steps(200, 1.0, -1, 0))
		cls := scripted{"A": {141: buy(85)}}
		cfg := baseConfig(cls)
		cfg.DeadMoney = true

		res, err := Run([]Instrument{a}, cfg)
		require.NoError(t, err)
		require.Len(t, res.Trades, 2)
		// 41 calendar days after entry
		assert.True(t, res.Trades[1].Date.Equal(dateAt(181)), "got %s", res.Trades[1].Date)
		assert.Contains(t, res.Trades[1].Reason, "Dead Money")
	})
}

func TestRunTrailingStop(t *testing.T) {
	// entry at 1.00 on row 140, a plateau from row 150, then a pullback from row 160
	path := func(plateau, pullback float64) []float64 {
		out := steps(200, 1.0, 150, plateau)
		for i := 160; i < len(out); i++ {
			out[i] = pullback
		}
		return out
	}
	tests := []struct {
		name     string
		plateau  float64
		pullback float64
		fires    bool
	}{
		{"armed above activation", 1.20, 1.09, true},
		// a 8.2% fall from the peak, but the price never cleared cost*1.05
		{"never armed", 1.04, 0.955, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := instrument("A", "Alpha", path(tt.plateau, tt.pullback))
			res, err := Run([]Instrument{a}, baseConfig(scripted{"A": {141: buy(85)}}))
			require.NoError(t, err)

			if !tt.fires {
				assert.Empty(t, tradesOf(res.Trades, model.ActionSell))
				return
			}
			sells := tradesOf(res.Trades, model.ActionSell)
			require.Len(t, sells, 1)
			assert.Equal(t, "Trailing Stop", sells[0].Reason)
			assert.True(t, sells[0].Date.Equal(dateAt(160)))
			assert.InDelta(t, tt.pullback, sells[0].Price, 1e-12)
		})
	}
}

func TestRunMomentumGate(t *testing.T) {
	falling := make([]float64, 200)
	rising := make([]float64, 200)
	for i := range falling {
		falling[i] = 2 - 0.002*float64(i)
		rising[i] = 1 + 0.001*float64(i)
	}
	insts := []Instrument{
		instrument("F", "Falling", falling),
		instrument("R", "Rising", rising),
	}
	// the falling fund carries the stronger signal
	cls := scripted{"F": {141: buy(95)}, "R": {141: buy(85)}}

	boughtCodes := func(cfg Config) []string {
		res, err := Run(insts, cfg)
		require.NoError(t, err)
		var codes []string
		for _, tr := range tradesOf(res.Trades, model.ActionBuy) {
			codes = append(codes, tr.Code)
		}
		return codes
	}

	cfg := baseConfig(cls)
	cfg.MomentumGate = true
	cfg.MomentumTopN = 1
	assert.Equal(t, []string{"R"}, boughtCodes(cfg))

	cfg.MomentumGate = false
	assert.Equal(t, []string{"F", "R"}, boughtCodes(cfg))
}

func TestRunRebalanceSellsLaggard(t *testing.T) {
	rising := make([]float64, 200)
	for i := range rising {
		rising[i] = 1 + 0.001*float64(i)
	}
	a := instrument("A", "Alpha", steps(200, 1.0, -1, 0))
	b := instrument("B", "Beta", rising)
	cls := scripted{"A": {132: buy(85)}}
	cfg := baseConfig(cls)
	cfg.Rebalance = true
	cfg.MomentumTopN = 1

	res, err := Run([]Instrument{a, b}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	out := res.Trades[1]
	assert.Equal(t, model.ActionRebalance, out.Action)
	assert.Equal(t, "A", out.Code)
	assert.True(t, out.Date.Equal(dateAt(132)))
	// held one day, so the 1.5% penalty applies
	assert.InDelta(t, 60, out.Fee, 1e-9)
	assert.InDelta(t, -60, out.PnL, 1e-9)
}

func TestRunEntriesRankedAndDeduplicated(t *testing.T) {
	flat := steps(200, 1.0, -1, 0)
	insts := []Instrument{
		instrument("001", "Alpha Index A", flat),
		instrument("002", "Alpha Index C", flat),
		instrument("003", "Gamma", flat),
		instrument("004", "Delta", flat),
	}
	cls := scripted{
		"001": {141: buy(85)},
		"002": {141: buy(90)},
		"003": {141: buy(85)},
		"004": {141: buy(85)},
	}

	cfg := baseConfig(cls)
	res, err := Run(insts, cfg)
	require.NoError(t, err)
	var codes []string
	for _, tr := range tradesOf(res.Trades, model.ActionBuy) {
		codes = append(codes, tr.Code)
	}
	assert.Equal(t, []string{"002", "003", "004"}, codes)

	cfg.MaxHoldings = 2
	res, err = Run(insts, cfg)
	require.NoError(t, err)
	assert.Len(t, tradesOf(res.Trades, model.ActionBuy), 2)

	cfg = baseConfig(cls)
	cfg.DedupeUnderlying = false
	cfg.MaxDailyBuys = 10
	res, err = Run(insts, cfg)
	require.NoError(t, err)
	codes = codes[:0]
	for _, tr := range tradesOf(res.Trades, model.ActionBuy) {
		codes = append(codes, tr.Code)
	}
	assert.Equal(t, []string{"002", "001", "003", "004"}, codes)
}

func TestRunMonthlyDepositAndBenchmark(t *testing.T) {
	a := instrument("A", "Alpha", steps(200, 1.0, -1, 0))
	bench := instrument("000300", "CSI 300", steps(200, 2.0, -1, 0))
	cfg := baseConfig(scripted{})
	cfg.MonthlyDeposit = 1000
	cfg.Benchmark = &bench

	res, err := Run([]Instrument{a}, cfg)
	require.NoError(t, err)

	deposits := tradesOf(res.Trades, model.ActionDeposit)
	require.Len(t, deposits, 2)
	assert.Equal(t, time.June, deposits[0].Date.Month())
	assert.Equal(t, 1, deposits[0].Date.Day())

	last := res.Equity[len(res.Equity)-1]
	assert.InDelta(t, 22000, last.Principal, 1e-9)
	assert.InDelta(t, 22000, last.Equity, 1e-9)
	assert.InDelta(t, 22000, last.Benchmark, 1e-9)
	assert.InDelta(t, 0, res.Summary.TotalReturn, 1e-12)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoInstruments)

	a := instrument("A", "Alpha", steps(50, 1.0, -1, 0))
	cfg := DefaultConfig()
	cfg.Start = dateAt(100)
	_, err = Run([]Instrument{a}, cfg)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = Run([]Instrument{a, a}, DefaultConfig())
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.Sizing = "Martingale"
	bad.MaxHoldings = 0
	_, err = Run([]Instrument{a}, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunIsDeterministic(t *testing.T) {
	wave := func(slope, amp float64, period int) []float64 {
		out := make([]float64, 260)
		for i := range out {
			out[i] = 1 + slope*float64(i) + amp*float64(i%period)
		}
		return out
	}
	insts := []Instrument{
		instrument("A", "Alpha", wave(0.004, 0.02, 7)),
		instrument("B", "Beta", wave(0.0013, 0.031, 5)),
		instrument("C", "Gamma", wave(0.0029, 0.017, 11)),
		instrument("D", "Delta", wave(0.0007, 0.043, 3)),
	}
	cls := scripted{
		"A": {141: buy(85)},
		"B": {141: buy(86)},
		"C": {141: buy(87)},
		"D": {141: buy(88)},
	}
	cfg := baseConfig(cls)
	cfg.MaxDailyBuys = 4
	cfg.HardStop = 0.5
	cfg.TrailingStop = 0.5

	first, err := Run(insts, cfg)
	require.NoError(t, err)
	require.Len(t, tradesOf(first.Trades, model.ActionBuy), 4)
	// four holdings are valued every day; repeat to cover many map orders
	for i := 0; i < 20; i++ {
		again, err := Run(insts, cfg)
		require.NoError(t, err)
		require.Equal(t, first.Trades, again.Trades)
		require.Equal(t, first.Equity, again.Equity)
	}
}

func TestTrackPad(t *testing.T) {
	tr := newTrack(instrument("A", "Alpha", []float64{1, 2, 3}))
	_, ok := tr.pad(dayKey(dateAt(-1)))
	assert.False(t, ok)

	row, ok := tr.pad(dayKey(dateAt(10)))
	require.True(t, ok)
	assert.Equal(t, 2, row)
	assert.Equal(t, 3.0, tr.padValue(dayKey(dateAt(10))))

	var none *track
	assert.Equal(t, 0.0, none.padValue(dayKey(dateAt(0))))
}

func TestRunSingle(t *testing.T) {
	a := instrument("A", "Alpha", steps(200, 1.0, 170, 1.15))
	cfg := baseConfig(scripted{"A": {141: buy(85), 176: sellSignal}})
	cfg.Start = time.Time{}

	res, err := RunSingle(a, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Equity, 71)
	require.Len(t, res.Trades, 2)
	assert.InDelta(t, 600, res.Trades[1].PnL, 1e-9)
	assert.InDelta(t, 20600, res.Summary.FinalEquity, 1e-6)
	assert.Equal(t, 1.0, res.Summary.WinRate)
}

func TestSweep(t *testing.T) {
	a := instrument("A", "Alpha", steps(200, 1.0, -1, 0))
	cfg := baseConfig(scripted{})
	cfg.End = dateAt(199)
	opts := SweepOptions{StepDays: 10, Tail: 30 * 24 * time.Hour, Workers: 3}

	starts := SweepStarts(cfg.Start, cfg.End, opts)
	require.Len(t, starts, 4)
	assert.True(t, starts[3].Equal(dateAt(160)))

	points, err := Sweep(context.Background(), []Instrument{a}, cfg, opts)
	require.NoError(t, err)
	require.Len(t, points, 4)
	for i, p := range points {
		assert.NoError(t, p.Err)
		assert.True(t, p.Start.Equal(starts[i]))
		assert.InDelta(t, 0, p.TotalReturn, 1e-12)
	}

	cfg.End = dateAt(150)
	_, err = Sweep(context.Background(), []Instrument{a}, cfg, opts)
	assert.ErrorIs(t, err, ErrEmptyRange)
}
