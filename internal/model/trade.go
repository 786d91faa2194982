package model

import "time"

// TradeAction is the kind of entry in a simulation trade log.
type TradeAction string

const (
	ActionBuy         TradeAction = "BUY"
	ActionSell        TradeAction = "SELL"
	ActionPartialSell TradeAction = "SELL(50%)"
	ActionRebalance   TradeAction = "REBALANCE"
	ActionDeposit     TradeAction = "DEPOSIT"
)

// Trade is one entry in a backtest trade log.
type Trade struct {
	Date   time.Time
	Action TradeAction
	Code   string
	Name   string
	Price  float64
	Shares float64
	Amount float64
	Fee    float64
	Reason string
	PnL    float64
}

// IsExit reports whether the trade realised P&L.
func (t Trade) IsExit() bool {
	switch t.Action {
	case ActionSell, ActionPartialSell, ActionRebalance:
		return true
	}
	return false
}
