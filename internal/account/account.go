package account

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/position"
)

const (
	// CutoffHour is the order cutoff; later orders settle a day later.
	CutoffHour = 15

	DeadMoneyDays = 40
	DeadMoneyBand = 0.03

	// legacyLotDate dates lots reconstructed for documents written before
	// lots were tracked.
	legacyLotDate = "2020-01-01"
)

// Account applies operations to an in-memory account document. Every
// operation validates before it mutates, so a failed call leaves the
// account untouched.
type Account struct {
	doc  *model.AccountDocument
	Fees position.FeeSchedule
}

// New wraps a copy of doc.
func New(doc *model.AccountDocument) *Account {
	if doc == nil {
		doc = model.NewAccountDocument(model.DefaultCapital)
	}
	d := doc.Clone()
	d.Normalize()
	return &Account{doc: d, Fees: position.DefaultFees}
}

// Document returns a copy of the current state.
func (a *Account) Document() *model.AccountDocument { return a.doc.Clone() }

func (a *Account) Cash() float64 { return a.doc.Capital }

func (a *Account) addCash(amount float64) {
	a.doc.Capital = decimal.NewFromFloat(a.doc.Capital).Add(decimal.NewFromFloat(amount)).InexactFloat64()
}

func stamp(t time.Time) string { return t.In(clock.Beijing).Format(model.TimeLayout) }

// SettlementDate is when a subscription placed at t is confirmed: the next
// day, or the day after when placed at or after the cutoff, rolled forward
// off weekends.
func SettlementDate(t time.Time) time.Time {
	t = t.In(clock.Beijing)
	days := 1
	if t.Hour() >= CutoffHour {
		days = 2
	}
	d := model.TruncateDay(t).AddDate(0, 0, days)
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, 2)
	case time.Sunday:
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// BuyOrder is a subscription request.
type BuyOrder struct {
	Code     string
	Name     string
	Price    float64
	Amount   float64
	StopLoss float64
	Target   float64
	Reason   string
}

// Buy debits the amount and queues a pending order. It returns the
// settlement date.
func (a *Account) Buy(now time.Time, o BuyOrder) (time.Time, error) {
	if !(o.Amount > 0) || !(o.Price > 0) {
		return time.Time{}, fmt.Errorf("buy %s: %w", o.Code, ErrInvalidAmount)
	}
	if a.doc.Capital < o.Amount {
		return time.Time{}, fmt.Errorf("buy %s: need ¥%.2f, have ¥%.2f: %w", o.Code, o.Amount, a.doc.Capital, ErrInsufficientCash)
	}
	now = now.In(clock.Beijing)
	settle := SettlementDate(now)
	a.addCash(-o.Amount)
	a.doc.PendingOrders = append(a.doc.PendingOrders, model.PendingOrder{
		Code:           o.Code,
		Name:           o.Name,
		Shares:         o.Amount / o.Price,
		Cost:           o.Price,
		Amount:         o.Amount,
		Date:           now.Format(model.DateLayout),
		SettlementDate: settle.Format(model.DateLayout),
		StopLoss:       o.StopLoss,
		Target:         o.Target,
	})
	note := "T+1确认"
	if now.Hour() >= CutoffHour {
		note = "次日确认"
	}
	a.doc.History = append(a.doc.History, model.HistoryEntry{
		Date:   stamp(now),
		Action: model.HistoryBuyOrder,
		Code:   o.Code,
		Name:   o.Name,
		Price:  o.Price,
		Amount: o.Amount,
		Reason: fmt.Sprintf("%s | %s | 预计 %s 到账", o.Reason, note, settle.Format(model.DateLayout)),
	})
	return settle, nil
}

// SellOrder redeems shares of one holding. Zero Shares sells everything.
type SellOrder struct {
	Code   string
	Price  float64
	Shares float64
	Reason string
	Force  bool
}

// SaleReport describes a completed sale.
type SaleReport struct {
	Code   string
	Name   string
	Reason string
	Closed bool
	position.SaleResult
}

// FeeNote is appended to the history reason when a penalty was paid.
func (r SaleReport) FeeNote() string {
	if r.Fee > 0 {
		return fmt.Sprintf(" (含惩罚费 ¥%.2f)", r.Fee)
	}
	return ""
}

// Sell redeems lots oldest first. When any consumed lot is younger than the
// penalty window the sale is refused with *PenaltyError unless forced.
func (a *Account) Sell(now time.Time, o SellOrder) (*SaleReport, error) {
	idx := a.doc.FindHolding(o.Code)
	if idx < 0 {
		return nil, fmt.Errorf("sell %s: %w", o.Code, ErrHoldingNotFound)
	}
	if !(o.Price > 0) || o.Shares < 0 {
		return nil, fmt.Errorf("sell %s: %w", o.Code, ErrInvalidAmount)
	}
	doc := a.doc.Holdings[idx]
	h, err := toHolding(doc)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", o.Code, err)
	}
	n := o.Shares
	if n == 0 {
		n = h.TotalShares()
	}
	now = now.In(clock.Beijing)
	sale, err := h.Sell(n, o.Price, model.TruncateDay(now), a.Fees)
	if err != nil {
		if errors.Is(err, position.ErrInsufficientShares) {
			return nil, fmt.Errorf("sell %s: %w", o.Code, ErrInsufficientShares)
		}
		return nil, fmt.Errorf("sell %s: %w", o.Code, err)
	}
	if sale.PenaltyShares > 0 && !o.Force {
		return nil, &PenaltyError{Code: o.Code, Shares: sale.PenaltyShares, Fee: sale.Fee}
	}

	a.addCash(sale.Net)
	report := &SaleReport{Code: doc.Code, Name: doc.Name, Reason: o.Reason, Closed: h.Empty(), SaleResult: sale}
	if h.Empty() {
		a.doc.Holdings = append(a.doc.Holdings[:idx], a.doc.Holdings[idx+1:]...)
	} else {
		a.doc.Holdings[idx] = fromHolding(doc, h)
	}
	a.doc.History = append(a.doc.History, model.HistoryEntry{
		Date:   stamp(now),
		Action: model.HistorySell,
		Code:   doc.Code,
		Name:   doc.Name,
		Price:  o.Price,
		Amount: sale.Net,
		Reason: o.Reason + report.FeeNote(),
		PnL:    sale.PnL(),
	})
	return report, nil
}

func (a *Account) Deposit(now time.Time, amount float64, note string) error {
	if !(amount > 0) {
		return fmt.Errorf("deposit: %w", ErrInvalidAmount)
	}
	if note == "" {
		note = "账户入金"
	}
	a.addCash(amount)
	a.doc.History = append(a.doc.History, model.HistoryEntry{
		Date: stamp(now), Action: model.HistoryDeposit, Code: "-", Name: "银行转入",
		Price: 1, Amount: amount, Reason: note,
	})
	return nil
}

func (a *Account) Withdraw(now time.Time, amount float64, note string) error {
	if !(amount > 0) {
		return fmt.Errorf("withdraw: %w", ErrInvalidAmount)
	}
	if a.doc.Capital < amount {
		return fmt.Errorf("withdraw ¥%.2f: %w", amount, ErrInsufficientCash)
	}
	if note == "" {
		note = "账户出金"
	}
	a.addCash(-amount)
	a.doc.History = append(a.doc.History, model.HistoryEntry{
		Date: stamp(now), Action: model.HistoryWithdraw, Code: "-", Name: "转出至银行",
		Price: 1, Amount: amount, Reason: note,
	})
	return nil
}

// NAVLookup returns the official NAV of code on day, if published.
type NAVLookup func(code string, day time.Time) (float64, bool)

// Matured lists the pending orders whose settlement date is on or before today.
func (a *Account) Matured(today time.Time) []model.PendingOrder {
	var out []model.PendingOrder
	for _, o := range a.doc.PendingOrders {
		if isMatured(o, today) {
			out = append(out, o)
		}
	}
	return out
}

func isMatured(o model.PendingOrder, today time.Time) bool {
	settle, err := time.ParseInLocation(model.DateLayout, o.SettlementDate, clock.Beijing)
	if err != nil {
		return true
	}
	return !model.TruncateDay(today.In(clock.Beijing)).Before(settle)
}

// Settle turns matured pending orders into lots. When nav knows the actual
// NAV of the trade date and it differs from the order price, shares and cost
// are restated at that NAV. It returns the number of orders confirmed.
func (a *Account) Settle(now time.Time, nav NAVLookup) int {
	var pending []model.PendingOrder
	settled := 0
	for _, o := range a.doc.PendingOrders {
		if !isMatured(o, now) {
			pending = append(pending, o)
			continue
		}
		correction := ""
		if nav != nil {
			if day, err := time.ParseInLocation(model.DateLayout, o.Date, clock.Beijing); err == nil {
				if actual, ok := nav(o.Code, day); ok && actual > 0 && math.Abs(actual-o.Cost) > 0.0001 {
					correction = fmt.Sprintf(" | 净值修正: %.4f->%.4f", o.Cost, actual)
					o.Shares = o.Amount / actual
					o.Cost = actual
				}
			}
		}
		a.addToHoldings(o)
		settled++
		a.doc.History = append(a.doc.History, model.HistoryEntry{
			Date:   stamp(now),
			Action: model.HistoryConfirm,
			Code:   o.Code,
			Name:   o.Name,
			Price:  o.Cost,
			Reason: "份额确认 (T+1)" + correction,
		})
	}
	if settled > 0 {
		if pending == nil {
			pending = []model.PendingOrder{}
		}
		a.doc.PendingOrders = pending
	}
	return settled
}

func (a *Account) addToHoldings(o model.PendingOrder) {
	lot := model.LotDoc{Date: o.Date, Shares: o.Shares, CostPerShare: o.Cost}
	if idx := a.doc.FindHolding(o.Code); idx >= 0 {
		h := &a.doc.Holdings[idx]
		total := h.Shares + o.Shares
		if total > 0 {
			h.Cost = (h.Cost*h.Shares + o.Shares*o.Cost) / total
		}
		h.Shares = total
		h.Lots = append(h.Lots, lot)
		return
	}
	a.doc.Holdings = append(a.doc.Holdings, model.HoldingDoc{
		Code:     o.Code,
		Name:     o.Name,
		Shares:   o.Shares,
		Cost:     o.Cost,
		Lots:     []model.LotDoc{lot},
		StopLoss: o.StopLoss,
		Target:   o.Target,
	})
}

// Reset replaces the account with a fresh one funded with capital.
func (a *Account) Reset(capital float64) {
	if !(capital > 0) {
		capital = model.DefaultCapital
	}
	a.doc = model.NewAccountDocument(capital)
}

// PriceFunc returns the current price for a holding.
type PriceFunc func(h model.HoldingDoc) float64

// HoldingView is one priced holding.
type HoldingView struct {
	model.HoldingDoc
	Price  float64
	Value  float64
	PnL    float64
	PnLPct float64
	Days   int
}

// Snapshot is the account valued at current prices.
type Snapshot struct {
	Cash        float64
	Pending     float64
	MarketValue float64
	Total       float64
	Holdings    []HoldingView
	Orders      []model.PendingOrder
}

// Snapshot values holdings with price. Pending orders count at their amount.
func (a *Account) Snapshot(today time.Time, price PriceFunc) Snapshot {
	s := Snapshot{Cash: a.doc.Capital, Orders: append([]model.PendingOrder{}, a.doc.PendingOrders...)}
	for _, o := range a.doc.PendingOrders {
		s.Pending += o.Amount
	}
	for _, h := range a.doc.Holdings {
		v := HoldingView{HoldingDoc: h, Price: h.Cost, Days: heldDays(h, today)}
		if price != nil {
			if p := price(h); p > 0 {
				v.Price = p
			}
		}
		v.Value = h.Shares * v.Price
		v.PnL = v.Value - h.Shares*h.Cost
		if h.Cost > 0 {
			v.PnLPct = (v.Price - h.Cost) / h.Cost
		}
		s.MarketValue += v.Value
		s.Holdings = append(s.Holdings, v)
	}
	s.Total = s.Cash + s.Pending + s.MarketValue
	return s
}

// DeadPosition is a holding that has gone nowhere for too long.
type DeadPosition struct {
	Code   string
	Name   string
	Days   int
	PnLPct float64
	Price  float64
}

// DeadMoney lists holdings held longer than DeadMoneyDays whose return is
// inside ±DeadMoneyBand.
func (a *Account) DeadMoney(today time.Time, price PriceFunc) []DeadPosition {
	var out []DeadPosition
	for _, v := range a.Snapshot(today, price).Holdings {
		if v.Days > DeadMoneyDays && math.Abs(v.PnLPct) < DeadMoneyBand {
			out = append(out, DeadPosition{Code: v.Code, Name: v.Name, Days: v.Days, PnLPct: v.PnLPct, Price: v.Price})
		}
	}
	return out
}

func heldDays(h model.HoldingDoc, today time.Time) int {
	if len(h.Lots) == 0 {
		return 0
	}
	first, err := parseLotDate(h.Lots[0].Date)
	if err != nil {
		return 0
	}
	for _, l := range h.Lots[1:] {
		if d, err := parseLotDate(l.Date); err == nil && d.Before(first) {
			first = d
		}
	}
	return model.DaysBetween(first, today.In(clock.Beijing))
}

func parseLotDate(s string) (time.Time, error) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return time.ParseInLocation(model.DateLayout, s, clock.Beijing)
}

func toHolding(d model.HoldingDoc) (*position.Holding, error) {
	lots := append([]model.LotDoc(nil), d.Lots...)
	if len(lots) == 0 {
		lots = []model.LotDoc{{Date: legacyLotDate, Shares: d.Shares, CostPerShare: d.Cost}}
	}
	sort.SliceStable(lots, func(i, j int) bool { return lots[i].Date < lots[j].Date })

	h := position.NewHolding(d.Code, d.Name)
	h.StopLoss, h.Target, h.PartialSold = d.StopLoss, d.Target, d.PartialSold
	for _, l := range lots {
		date, err := parseLotDate(l.Date)
		if err != nil {
			return nil, fmt.Errorf("lot date %q: %w", l.Date, err)
		}
		if err := h.AddLot(date, l.Shares, l.CostPerShare); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func fromHolding(d model.HoldingDoc, h *position.Holding) model.HoldingDoc {
	d.Shares = h.TotalShares()
	d.Cost = h.AvgCost()
	lots := h.Lots()
	d.Lots = make([]model.LotDoc, 0, len(lots))
	for _, l := range lots {
		d.Lots = append(d.Lots, model.LotDoc{
			Date:         l.EntryDate.Format(model.DateLayout),
			Shares:       l.Shares,
			CostPerShare: l.CostPerShare,
		})
	}
	return d
}
