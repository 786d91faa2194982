package backtest

import (
	"fmt"
	"math"

	"WaveSentinel/internal/model"
	"WaveSentinel/internal/position"
	"WaveSentinel/internal/strategy"
)

// RunSingle trades one fund in isolation: a fixed fraction of cash per entry,
// immediate settlement and no redemption fees. Its win rate and payoff feed
// the Kelly estimate.
func RunSingle(inst Instrument, cfg Config) (*Result, error) {
	if inst.Frame == nil || inst.Frame.Len() == 0 {
		return nil, ErrNoInstruments
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	}
	classify := cfg.classifier()
	t := newTrack(inst)
	free := position.FeeSchedule{}

	cash := cfg.InitialCapital
	var h *position.Holding
	res := &Result{}
	peak := cash

	for row, d := range inst.Frame.Dates {
		k := dayKey(d)
		if (!cfg.Start.IsZero() && k < dayKey(cfg.Start)) || (!cfg.End.IsZero() && k > dayKey(cfg.End)) {
			continue
		}
		if row+1 < cfg.MinHistory {
			continue
		}
		price := t.value(row)
		sig := classify.Classify(inst.Frame.Head(row + 1))

		sell := func(shares float64, action model.TradeAction, reason string) {
			sale, err := h.Sell(shares, price, d, free)
			if err != nil {
				return
			}
			cash += sale.Net
			res.Trades = append(res.Trades, model.Trade{
				Date: d, Action: action, Code: inst.Code, Name: inst.Name,
				Price: price, Shares: sale.Shares, Amount: sale.Net, Reason: reason, PnL: sale.PnL(),
			})
		}

		if h != nil {
			h.Mark(price)
			if cfg.PartialProfit > 0 && !h.PartialSold && h.ReturnAt(price) > cfg.PartialProfit {
				h.PartialSold = true
				sell(h.TotalShares()*0.5, model.ActionPartialSell, fmt.Sprintf("Partial Lock (+%.0f%%)", cfg.PartialProfit*100))
			}
			cost := h.AvgCost()
			dd := (h.PeakPrice - price) / h.PeakPrice
			reason := ""
			switch {
			case h.Target > 0 && price >= h.Target:
				reason = "Target Profit Hit (Goal)"
			case price < math.Max(h.StopLoss, cost*(1-cfg.HardStop)):
				reason = "Structure Break / Stop"
			case dd > cfg.TrailingStop && price > cost*cfg.TrailingActivate:
				reason = fmt.Sprintf("Trailing Stop (-%.0f%%)", cfg.TrailingStop*100)
			case sig.IsSell():
				reason = sig.Description
			}
			if reason != "" {
				sell(h.TotalShares(), model.ActionSell, reason)
				h = nil
			}
		} else if sig.IsBuy() && sig.Score >= cfg.EntryScore {
			amt := cash * strategy.FixedFraction
			next := position.NewHolding(inst.Code, inst.Name)
			if err := next.AddLot(d, amt/price, price); err == nil {
				next.StopLoss = sig.StopLoss
				next.Target = sig.Target
				h = next
				cash -= amt
				res.Trades = append(res.Trades, model.Trade{
					Date: d, Action: model.ActionBuy, Code: inst.Code, Name: inst.Name,
					Price: price, Shares: amt / price, Amount: amt, Reason: sig.Description,
				})
			}
		}

		equity := cash
		if h != nil {
			equity += h.MarketValue(price)
		}
		peak = math.Max(peak, equity)
		res.Equity = append(res.Equity, EquityPoint{
			Date:      d,
			Equity:    equity,
			Principal: cfg.InitialCapital,
			Drawdown:  (equity - peak) / peak,
		})
	}
	if len(res.Equity) == 0 {
		return nil, ErrEmptyRange
	}
	res.Summary = Summarize(res.Equity, res.Trades)
	return res, nil
}
