package model

// DefaultCapital is the starting cash of a fresh account.
const DefaultCapital = 20000.0

// History actions written by the portfolio manager.
const (
	HistoryBuyOrder = "BUY_ORDER"
	HistoryConfirm  = "CONFIRM"
	HistorySell     = "SELL"
	HistoryDeposit  = "DEPOSIT"
	HistoryWithdraw = "WITHDRAW"
)

// AccountDocument is the persisted state of a live paper-trading account.
// Field names are part of the stored schema.
type AccountDocument struct {
	Capital       float64        `json:"capital"`
	Holdings      []HoldingDoc   `json:"holdings"`
	PendingOrders []PendingOrder `json:"pending_orders"`
	History       []HistoryEntry `json:"history"`
}

type HoldingDoc struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Shares      float64  `json:"shares"`
	Cost        float64  `json:"cost"`
	Lots        []LotDoc `json:"lots"`
	StopLoss    float64  `json:"stop_loss"`
	Target      float64  `json:"target"`
	PartialSold bool     `json:"partial_sold"`
}

type LotDoc struct {
	Date         string  `json:"date"`
	Shares       float64 `json:"shares"`
	CostPerShare float64 `json:"cost_per_share"`
}

// PendingOrder is a purchase awaiting share confirmation.
type PendingOrder struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Shares         float64 `json:"shares"`
	Cost           float64 `json:"cost"`
	Amount         float64 `json:"amount"`
	Date           string  `json:"date"`
	SettlementDate string  `json:"settlement_date"`
	StopLoss       float64 `json:"stop_loss"`
	Target         float64 `json:"target"`
}

type HistoryEntry struct {
	Date   string  `json:"date"`
	Action string  `json:"action"`
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
	PnL    float64 `json:"pnl"`
}

// NewAccountDocument returns an empty account funded with capital.
func NewAccountDocument(capital float64) *AccountDocument {
	return &AccountDocument{
		Capital:       capital,
		Holdings:      []HoldingDoc{},
		PendingOrders: []PendingOrder{},
		History:       []HistoryEntry{},
	}
}

// Normalize fills fields missing from older documents.
func (d *AccountDocument) Normalize() {
	if d.Holdings == nil {
		d.Holdings = []HoldingDoc{}
	}
	if d.PendingOrders == nil {
		d.PendingOrders = []PendingOrder{}
	}
	if d.History == nil {
		d.History = []HistoryEntry{}
	}
	for i := range d.Holdings {
		h := &d.Holdings[i]
		if len(h.Lots) == 0 && h.Shares > 0 {
			h.Lots = []LotDoc{{Date: "2020-01-01", Shares: h.Shares, CostPerShare: h.Cost}}
		}
	}
}

// Clone returns a deep copy.
func (d *AccountDocument) Clone() *AccountDocument {
	out := &AccountDocument{
		Capital:       d.Capital,
		Holdings:      make([]HoldingDoc, len(d.Holdings)),
		PendingOrders: append([]PendingOrder{}, d.PendingOrders...),
		History:       append([]HistoryEntry{}, d.History...),
	}
	for i, h := range d.Holdings {
		h.Lots = append([]LotDoc{}, h.Lots...)
		out.Holdings[i] = h
	}
	return out
}

// FindHolding returns the index of the holding for code, or -1.
func (d *AccountDocument) FindHolding(code string) int {
	for i, h := range d.Holdings {
		if h.Code == code {
			return i
		}
	}
	return -1
}
