package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKelly(t *testing.T) {
	for _, b := range []float64{0.5, 1, 2.5, 10} {
		assert.Equal(t, 0.0, Kelly(0, b), "kelly(0, %v)", b)
	}
	assert.Equal(t, 0.0, Kelly(0.9, 0))
	assert.Equal(t, 0.0, Kelly(0.9, -1))
	assert.InDelta(t, 0.37, Kelly(KellyWinRate, KellyPayoff), 1e-12)

	for _, b := range []float64{0.5, 1, 2.5} {
		prev := -1.0
		for p := 0.0; p <= 1.0001; p += 0.05 {
			k := Kelly(p, b)
			assert.GreaterOrEqual(t, k, 0.0)
			assert.GreaterOrEqual(t, k, prev, "kelly must not decrease in p (b=%v, p=%v)", b, p)
			prev = k
		}
	}
}

func TestPositionSize(t *testing.T) {
	base := SizingInput{Equity: 20000, Cash: 20000, InitialCapital: 20000, Price: 1.5, ATR: 0.02, MaxHoldings: 10}

	assert.InDelta(t, 4000, PositionSize(SizingFixed, base), 1e-9)
	assert.InDelta(t, 4000, PositionSize(SizingEqual, base), 1e-9)
	assert.InDelta(t, 3700, PositionSize(SizingKelly, base), 1e-9)
	// (20000*1%)/(2*0.02) = 5000 shares = 7500, capped at 30% of equity
	assert.InDelta(t, 6000, PositionSize(SizingATR, base), 1e-9)

	small := base
	small.ATR = 0.5
	// 200/1.0 = 200 shares * 1.5
	assert.InDelta(t, 300, PositionSize(SizingATR, small), 1e-9)

	noATR := base
	noATR.ATR = 0
	assert.Equal(t, PositionSize(SizingEqual, noATR), PositionSize(SizingATR, noATR))

	few := base
	few.MaxHoldings = 5
	assert.InDelta(t, 20000*0.33, PositionSize(SizingEqual, few), 1e-9)

	poor := base
	poor.Cash = 1234
	for _, m := range []SizingModel{SizingFixed, SizingEqual, SizingKelly, SizingATR} {
		assert.InDelta(t, 1234, PositionSize(m, poor), 1e-9, string(m))
	}
}

func TestParseSizingModel(t *testing.T) {
	m, err := ParseSizingModel("kelly")
	require.NoError(t, err)
	assert.Equal(t, SizingKelly, m)

	_, err = ParseSizingModel("martingale")
	assert.Error(t, err)
}
