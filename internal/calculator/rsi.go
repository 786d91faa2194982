package calculator

import "math"

// RSI computes the relative strength index using simple rolling means of
// gains and losses. The first change is counted as zero. A window with no
// losses scores 100.
func RSI(values []float64, period int) []float64 {
	n := len(values)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else if change < 0 {
			losses[i] = -change
		}
	}
	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	out := nanSlice(n)
	for i := range out {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// ATR is the rolling mean of absolute NAV changes. NAV series carry no
// intraday range, so the true range is |Δvalue|.
func ATR(values []float64, period int) (tr, atr []float64) {
	tr = Diff(values)
	for i, v := range tr {
		tr[i] = math.Abs(v)
	}
	return tr, SMA(tr, period)
}
