package backtest

import (
	"math"

	"WaveSentinel/internal/model"
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252

// Summary holds performance statistics for a run.
type Summary struct {
	FinalEquity     float64
	Principal       float64
	TotalReturn     float64
	CAGR            float64
	MaxDrawdown     float64
	Sharpe          float64
	BenchmarkReturn float64
	Alpha           float64

	Buys        int
	Exits       int
	Wins        int
	WinRate     float64
	PayoffRatio float64
}

// Summarize computes statistics from an equity curve and its trade log.
// Returns are measured against principal, so deposits are not counted as
// profit.
func Summarize(curve []EquityPoint, trades []model.Trade) Summary {
	var s Summary
	summarizeTrades(&s, trades)
	if len(curve) == 0 {
		return s
	}
	last := curve[len(curve)-1]
	s.FinalEquity = last.Equity
	s.Principal = last.Principal
	if last.Principal > 0 {
		s.TotalReturn = (last.Equity - last.Principal) / last.Principal
	}
	if base := 1 + s.TotalReturn; base > 0 {
		s.CAGR = math.Pow(base, float64(TradingDaysPerYear)/float64(len(curve))) - 1
	}
	for _, p := range curve {
		if p.Drawdown < s.MaxDrawdown {
			s.MaxDrawdown = p.Drawdown
		}
	}
	s.Sharpe = sharpe(curve)
	if first := curve[0].Benchmark; first > 0 {
		s.BenchmarkReturn = (last.Benchmark - first) / first
		s.Alpha = s.TotalReturn - s.BenchmarkReturn
	}
	return s
}

func summarizeTrades(s *Summary, trades []model.Trade) {
	var winSum, lossSum float64
	losses := 0
	for _, t := range trades {
		switch {
		case t.Action == model.ActionBuy:
			s.Buys++
		case t.IsExit():
			s.Exits++
			if t.PnL > 0 {
				s.Wins++
				winSum += t.PnL
			} else {
				losses++
				lossSum += t.PnL
			}
		}
	}
	if s.Exits == 0 {
		return
	}
	s.WinRate = float64(s.Wins) / float64(s.Exits)
	avgWin := 0.0
	if s.Wins > 0 {
		avgWin = winSum / float64(s.Wins)
	}
	avgLoss := 1.0
	if losses > 0 {
		avgLoss = math.Abs(lossSum / float64(losses))
	}
	if avgLoss > 0 {
		s.PayoffRatio = avgWin / avgLoss
	}
}

// sharpe is the annualised mean over sample deviation of daily equity changes.
func sharpe(curve []EquityPoint) float64 {
	var rets []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, curve[i].Equity/prev-1)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(rets)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}
