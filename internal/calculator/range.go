package calculator

import "math"

// RollingMax returns the trailing maximum over window points; NaN until the
// window is full.
func RollingMax(values []float64, window int) []float64 {
	return rollingExtreme(values, window, func(a, b float64) bool { return a > b })
}

// RollingMin returns the trailing minimum over window points; NaN until the
// window is full.
func RollingMin(values []float64, window int) []float64 {
	return rollingExtreme(values, window, func(a, b float64) bool { return a < b })
}

// rollingExtreme keeps a monotonic deque of indices so each point is pushed
// and popped once.
func rollingExtreme(values []float64, window int, better func(a, b float64) bool) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	deque := make([]int, 0, window)
	for i, v := range values {
		for len(deque) > 0 && deque[0] <= i-window {
			deque = deque[1:]
		}
		for len(deque) > 0 && !better(values[deque[len(deque)-1]], v) {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if i >= window-1 {
			out[i] = values[deque[0]]
		}
	}
	return out
}

// WindowMax returns the maximum of the last n values, ignoring NaN.
func WindowMax(values []float64, n int) float64 {
	start := len(values) - n
	if start < 0 {
		start = 0
	}
	m := math.Inf(-1)
	for _, v := range values[start:] {
		if !math.IsNaN(v) && v > m {
			m = v
		}
	}
	return m
}

// Diff returns v[i]-v[i-1]; the first element is NaN.
func Diff(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

// Shift lags a column by one period.
func Shift(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i-1]
	}
	return out
}

// PctChange returns the period-over-period fractional change. A zero base
// yields NaN.
func PctChange(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			out[i] = values[i]/values[i-1] - 1
		}
	}
	return out
}
