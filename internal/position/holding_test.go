package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func twoLots(t *testing.T) *Holding {
	t.Helper()
	h := NewHolding("012414", "招商中证白酒C")
	require.NoError(t, h.AddLot(d0, 5, 1.0))
	require.NoError(t, h.AddLot(d0.AddDate(0, 0, 10), 5, 2.0))
	return h
}

func TestHolding_Aggregates(t *testing.T) {
	h := twoLots(t)
	assert.Equal(t, 10.0, h.TotalShares())
	assert.InDelta(t, 1.5, h.AvgCost(), 1e-12)
	assert.Equal(t, 20, h.HoldingDays(d0.AddDate(0, 0, 20)))
	assert.Equal(t, d0, h.FirstEntry())
}

func TestHolding_AddLotRejectsNonPositive(t *testing.T) {
	h := NewHolding("x", "x")
	assert.ErrorIs(t, h.AddLot(d0, 0, 1), ErrInvalidLot)
	assert.ErrorIs(t, h.AddLot(d0, 1, -1), ErrInvalidLot)
	assert.True(t, h.Empty())
}

func TestHolding_RemoveSharesFIFO(t *testing.T) {
	t.Run("within first lot", func(t *testing.T) {
		h := twoLots(t)
		consumed, err := h.RemoveShares(3)
		require.NoError(t, err)
		require.Len(t, consumed, 1)
		assert.Equal(t, 1.0, consumed[0].CostPerShare)

		lots := h.Lots()
		require.Len(t, lots, 2)
		assert.Equal(t, 2.0, lots[0].Shares)
		assert.Equal(t, 5.0, lots[1].Shares)
		// (2*1 + 5*2) / 7
		assert.InDelta(t, 12.0/7.0, h.AvgCost(), 1e-12)
	})

	t.Run("exactly the first lot", func(t *testing.T) {
		h := twoLots(t)
		_, err := h.RemoveShares(5)
		require.NoError(t, err)
		lots := h.Lots()
		require.Len(t, lots, 1)
		assert.Equal(t, 2.0, lots[0].CostPerShare)
		assert.InDelta(t, 2.0, h.AvgCost(), 1e-12)
	})

	t.Run("spills into second lot", func(t *testing.T) {
		h := twoLots(t)
		consumed, err := h.RemoveShares(7)
		require.NoError(t, err)
		require.Len(t, consumed, 2)
		assert.Equal(t, 5.0, consumed[0].Shares)
		assert.Equal(t, 2.0, consumed[1].Shares)

		lots := h.Lots()
		require.Len(t, lots, 1)
		assert.InDelta(t, 3.0, lots[0].Shares, 1e-12)
		assert.InDelta(t, 3.0, h.TotalShares(), 1e-12)
		assert.InDelta(t, 2.0, h.AvgCost(), 1e-12)
	})

	t.Run("everything", func(t *testing.T) {
		h := twoLots(t)
		_, err := h.RemoveShares(10)
		require.NoError(t, err)
		assert.True(t, h.Empty())
		assert.Equal(t, 0.0, h.AvgCost())
	})

	t.Run("too many leaves holding untouched", func(t *testing.T) {
		h := twoLots(t)
		_, err := h.RemoveShares(10.5)
		assert.ErrorIs(t, err, ErrInsufficientShares)
		assert.Equal(t, 10.0, h.TotalShares())
		assert.Len(t, h.Lots(), 2)
	})
}

func TestHolding_SellAppliesPenaltyPerLot(t *testing.T) {
	h := twoLots(t)
	asOf := d0.AddDate(0, 0, 12) // first lot 12 days old, second 2 days

	quote, err := h.QuoteSale(10, 3.0, asOf, DefaultFees)
	require.NoError(t, err)
	assert.Equal(t, 10.0, h.TotalShares(), "quote must not mutate")

	res, err := h.Sell(10, 3.0, asOf, DefaultFees)
	require.NoError(t, err)
	assert.Equal(t, quote, res)

	assert.InDelta(t, 30.0, res.Gross, 1e-12)
	assert.InDelta(t, 15*0.015, res.Fee, 1e-12)
	assert.InDelta(t, 30-0.225, res.Net, 1e-12)
	assert.InDelta(t, 15.0, res.CostBasis, 1e-12)
	assert.InDelta(t, 5.0, res.PenaltyShares, 1e-12)
	assert.InDelta(t, res.Net-15, res.PnL(), 1e-12)
	assert.True(t, h.Empty())
}

func TestFeeSchedule_Boundary(t *testing.T) {
	assert.Equal(t, 0.015, DefaultFees.Rate(d0, d0.AddDate(0, 0, 6)))
	assert.Equal(t, 0.0, DefaultFees.Rate(d0, d0.AddDate(0, 0, 7)))
}
