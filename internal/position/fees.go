package position

import (
	"time"

	"WaveSentinel/internal/model"
)

// FeeSchedule charges a redemption penalty on lots held too briefly.
type FeeSchedule struct {
	PenaltyRate float64
	PenaltyDays int
}

// DefaultFees models C-class funds: 1.5% when redeemed within 7 days.
var DefaultFees = FeeSchedule{PenaltyRate: 0.015, PenaltyDays: 7}

// Rate returns the fee rate for a lot entered on entry and sold on asOf.
func (f FeeSchedule) Rate(entry, asOf time.Time) float64 {
	if model.DaysBetween(entry, asOf) < f.PenaltyDays {
		return f.PenaltyRate
	}
	return 0
}

// SaleResult prices a sale lot by lot.
type SaleResult struct {
	Shares        float64
	Price         float64
	Gross         float64
	Fee           float64
	Net           float64
	CostBasis     float64
	PenaltyShares float64
}

func (r SaleResult) PnL() float64 { return r.Net - r.CostBasis }

// PnLPct is P&L over cost basis.
func (r SaleResult) PnLPct() float64 {
	if r.CostBasis == 0 {
		return 0
	}
	return r.PnL() / r.CostBasis
}

func priceLots(lots []Lot, price float64, asOf time.Time, fees FeeSchedule) SaleResult {
	r := SaleResult{Price: price}
	for _, l := range lots {
		gross := l.Shares * price
		rate := fees.Rate(l.EntryDate, asOf)
		fee := gross * rate
		if rate > 0 {
			r.PenaltyShares += l.Shares
		}
		r.Shares += l.Shares
		r.Gross += gross
		r.Fee += fee
		r.Net += gross - fee
		r.CostBasis += l.Shares * l.CostPerShare
	}
	return r
}

// QuoteSale prices selling n shares at price without changing the holding.
func (h *Holding) QuoteSale(n, price float64, asOf time.Time, fees FeeSchedule) (SaleResult, error) {
	consumed, _, err := h.plan(n)
	if err != nil {
		return SaleResult{}, err
	}
	return priceLots(consumed, price, asOf, fees), nil
}

// Sell removes n shares FIFO and prices them, applying the penalty per lot.
func (h *Holding) Sell(n, price float64, asOf time.Time, fees FeeSchedule) (SaleResult, error) {
	consumed, err := h.RemoveShares(n)
	if err != nil {
		return SaleResult{}, err
	}
	return priceLots(consumed, price, asOf, fees), nil
}
