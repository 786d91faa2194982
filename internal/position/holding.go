package position

import (
	"errors"
	"fmt"
	"time"

	"WaveSentinel/internal/model"
)

var (
	ErrInvalidLot         = errors.New("lot shares and cost must be positive")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// shareEpsilon absorbs float residue when a sale empties a lot.
const shareEpsilon = 1e-9

// Lot is one purchase batch with its own date and cost basis.
type Lot struct {
	EntryDate    time.Time
	Shares       float64
	CostPerShare float64
}

// Holding is a position built from lots, oldest first.
type Holding struct {
	Code string
	Name string

	StopLoss    float64
	Target      float64
	PeakPrice   float64
	PartialSold bool

	lots        []Lot
	totalShares float64
	avgCost     float64
}

func NewHolding(code, name string) *Holding {
	return &Holding{Code: code, Name: name}
}

// AddLot appends a purchase and recomputes the aggregates.
func (h *Holding) AddLot(date time.Time, shares, costPerShare float64) error {
	if !(shares > 0) || !(costPerShare > 0) {
		return fmt.Errorf("%s: %w (shares=%v cost=%v)", h.Code, ErrInvalidLot, shares, costPerShare)
	}
	h.lots = append(h.lots, Lot{EntryDate: date, Shares: shares, CostPerShare: costPerShare})
	if costPerShare > h.PeakPrice {
		h.PeakPrice = costPerShare
	}
	h.recompute()
	return nil
}

// RemoveShares consumes n shares oldest lot first and returns the consumed
// slices. Nothing changes when n exceeds the holding.
func (h *Holding) RemoveShares(n float64) ([]Lot, error) {
	consumed, remaining, err := h.plan(n)
	if err != nil {
		return nil, err
	}
	h.lots = remaining
	h.recompute()
	return consumed, nil
}

func (h *Holding) plan(n float64) (consumed, remaining []Lot, err error) {
	if !(n > 0) {
		return nil, nil, fmt.Errorf("%s: sell amount must be positive, got %v", h.Code, n)
	}
	if n > h.totalShares+shareEpsilon {
		return nil, nil, fmt.Errorf("%s: want %.4f, hold %.4f: %w", h.Code, n, h.totalShares, ErrInsufficientShares)
	}
	left := n
	for i, lot := range h.lots {
		if left <= shareEpsilon {
			remaining = append(remaining, h.lots[i:]...)
			break
		}
		take := lot.Shares
		if left < lot.Shares-shareEpsilon {
			take = left
			rest := lot
			rest.Shares = lot.Shares - take
			remaining = append(remaining, rest)
			remaining = append(remaining, h.lots[i+1:]...)
			consumed = append(consumed, Lot{EntryDate: lot.EntryDate, Shares: take, CostPerShare: lot.CostPerShare})
			left = 0
			break
		}
		consumed = append(consumed, lot)
		left -= take
	}
	return consumed, remaining, nil
}

func (h *Holding) recompute() {
	total, cost := 0.0, 0.0
	for _, l := range h.lots {
		total += l.Shares
		cost += l.Shares * l.CostPerShare
	}
	h.totalShares = total
	if total > 0 {
		h.avgCost = cost / total
	} else {
		h.avgCost = 0
	}
}

func (h *Holding) TotalShares() float64 { return h.totalShares }
func (h *Holding) AvgCost() float64     { return h.avgCost }
func (h *Holding) Empty() bool          { return len(h.lots) == 0 }

// Lots returns a copy of the lots, oldest first.
func (h *Holding) Lots() []Lot { return append([]Lot(nil), h.lots...) }

// FirstEntry is the date of the oldest lot.
func (h *Holding) FirstEntry() time.Time {
	if len(h.lots) == 0 {
		return time.Time{}
	}
	return h.lots[0].EntryDate
}

// HoldingDays counts calendar days since the oldest lot.
func (h *Holding) HoldingDays(asOf time.Time) int {
	if len(h.lots) == 0 {
		return 0
	}
	return model.DaysBetween(h.lots[0].EntryDate, asOf)
}

func (h *Holding) MarketValue(price float64) float64 { return h.totalShares * price }

// ReturnAt is the fractional gain of price over the average cost.
func (h *Holding) ReturnAt(price float64) float64 {
	if h.avgCost == 0 {
		return 0
	}
	return (price - h.avgCost) / h.avgCost
}

// Mark raises the post-entry peak used by the trailing stop.
func (h *Holding) Mark(price float64) {
	if price > h.PeakPrice {
		h.PeakPrice = price
	}
}
