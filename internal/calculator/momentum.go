package calculator

import "errors"

var (
	ErrShortWindow = errors.New("not enough data for momentum window")
	ErrZeroBase    = errors.New("momentum base value is zero")
)

// Momentum returns the trailing return latest/base - 1, where base sits
// lookback points before the latest value.
func Momentum(values []float64, lookback int) (float64, error) {
	n := len(values)
	if lookback <= 0 || n <= lookback {
		return 0, ErrShortWindow
	}
	base := values[n-1-lookback]
	if base == 0 {
		return 0, ErrZeroBase
	}
	return values[n-1]/base - 1, nil
}
