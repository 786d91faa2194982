package backtest

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"WaveSentinel/internal/model"
	"WaveSentinel/internal/position"
	"WaveSentinel/internal/strategy"
)

var (
	ErrNoInstruments = errors.New("no instruments to simulate")
	ErrEmptyRange    = errors.New("no trading days in range")
)

// missingMomentum ranks a held fund below every scored one.
const missingMomentum = -999

// Receivable is sale proceeds that become cash on UnlockDate.
type Receivable struct {
	UnlockDate time.Time
	Amount     float64
}

// EquityPoint is the end-of-day account state.
type EquityPoint struct {
	Date      time.Time
	Equity    float64
	Principal float64
	Benchmark float64
	Drawdown  float64
}

// Result is the output of a simulation.
type Result struct {
	Equity  []EquityPoint
	Trades  []model.Trade
	Summary Summary
}

type simulation struct {
	cfg      Config
	classify strategy.Classifier

	tracks []*track
	byCode map[string]*track
	bench  *track

	cash        float64
	principal   float64
	holdings    map[string]*position.Holding
	receivables []Receivable
	peak        float64

	lastRebalance int
	lastMonth     int
	benchShares   float64
	benchCash     float64

	trades []model.Trade
	curve  []EquityPoint
}

// Run simulates trading the instruments day by day between cfg.Start and
// cfg.End. Each call owns its own state.
func Run(instruments []Instrument, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, ErrNoInstruments
	}
	s := &simulation{
		cfg:           cfg,
		classify:      cfg.classifier(),
		byCode:        make(map[string]*track, len(instruments)),
		holdings:      make(map[string]*position.Holding),
		cash:          cfg.InitialCapital,
		principal:     cfg.InitialCapital,
		peak:          cfg.InitialCapital,
		lastRebalance: -999,
		lastMonth:     -1,
	}
	for _, inst := range instruments {
		if inst.Frame == nil {
			return nil, fmt.Errorf("instrument %s has no frame", inst.Code)
		}
		if _, dup := s.byCode[inst.Code]; dup {
			return nil, fmt.Errorf("duplicate instrument %s", inst.Code)
		}
		t := newTrack(inst)
		s.tracks = append(s.tracks, t)
		s.byCode[inst.Code] = t
	}
	sort.Slice(s.tracks, func(i, j int) bool { return s.tracks[i].Code < s.tracks[j].Code })
	if cfg.Benchmark != nil && cfg.Benchmark.Frame != nil {
		s.bench = newTrack(*cfg.Benchmark)
	}

	days := s.calendar()
	if len(days) == 0 {
		return nil, ErrEmptyRange
	}
	s.openBenchmark(days)
	for i, d := range days {
		s.step(i, d)
	}

	res := &Result{Equity: s.curve, Trades: s.trades}
	res.Summary = Summarize(res.Equity, res.Trades)
	log.Printf("[INFO] backtest: %d instruments, %d days, %d trades, return %.2f%%",
		len(s.tracks), len(days), len(s.trades), res.Summary.TotalReturn*100)
	return res, nil
}

// calendar is the union of instrument and benchmark dates inside the range.
func (s *simulation) calendar() []time.Time {
	seen := make(map[int]time.Time)
	add := func(t *track) {
		for _, d := range t.Frame.Dates {
			k := dayKey(d)
			if !s.cfg.Start.IsZero() && k < dayKey(s.cfg.Start) {
				continue
			}
			if !s.cfg.End.IsZero() && k > dayKey(s.cfg.End) {
				continue
			}
			if _, ok := seen[k]; !ok {
				seen[k] = model.TruncateDay(d)
			}
		}
	}
	for _, t := range s.tracks {
		add(t)
	}
	if s.bench != nil {
		add(s.bench)
	}
	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return dayKey(days[i]) < dayKey(days[j]) })
	return days
}

// openBenchmark buys the benchmark with the initial capital on its first
// bar inside the range.
func (s *simulation) openBenchmark(days []time.Time) {
	s.benchCash = s.cfg.InitialCapital
	if s.bench == nil {
		return
	}
	for _, d := range days {
		if row, ok := s.bench.at(dayKey(d)); ok {
			if p := s.bench.value(row); p > 0 {
				s.benchShares = s.cfg.InitialCapital / p
				s.benchCash = 0
			}
			return
		}
	}
}

func (s *simulation) step(i int, d time.Time) {
	day := dayKey(d)

	s.deposit(d)
	s.settle(d)

	rebalanced := s.rebalance(i, d)
	s.exits(d, rebalanced)
	s.entries(d)

	equity := s.equity(day)
	if equity > s.peak {
		s.peak = equity
	}
	dd := 0.0
	if s.peak > 0 {
		dd = (equity - s.peak) / s.peak
	}
	s.curve = append(s.curve, EquityPoint{
		Date:      d,
		Equity:    equity,
		Principal: s.principal,
		Benchmark: s.benchmarkValue(day),
		Drawdown:  dd,
	})
}

func (s *simulation) deposit(d time.Time) {
	amt := s.cfg.MonthlyDeposit
	if amt <= 0 {
		return
	}
	m := monthKey(d)
	if m == s.lastMonth {
		return
	}
	first := s.lastMonth == -1
	s.lastMonth = m
	if first {
		return
	}
	s.cash += amt
	s.principal += amt
	s.trades = append(s.trades, model.Trade{
		Date:   d,
		Action: model.ActionDeposit,
		Code:   "-",
		Name:   "monthly deposit",
		Price:  1,
		Shares: amt,
		Amount: amt,
		Reason: "scheduled monthly top-up",
	})
	if p := s.bench.padValue(dayKey(d)); p > 0 {
		s.benchShares += amt / p
	} else {
		s.benchCash += amt
	}
}

// settle releases receivables whose unlock date has arrived.
func (s *simulation) settle(d time.Time) {
	day := dayKey(d)
	kept := s.receivables[:0]
	for _, r := range s.receivables {
		if dayKey(r.UnlockDate) <= day {
			s.cash += r.Amount
			continue
		}
		kept = append(kept, r)
	}
	s.receivables = kept
}

func (s *simulation) pending() float64 {
	total := 0.0
	for _, r := range s.receivables {
		total += r.Amount
	}
	return total
}

// equity values holdings at today's bar, or the last known one when the
// fund did not publish today.
func (s *simulation) equity(day int) float64 {
	total := s.cash + s.pending()
	// fixed code order: the float sum must not depend on map iteration
	for _, code := range s.heldCodes() {
		h := s.holdings[code]
		price := s.byCode[code].padValue(day)
		if price == 0 {
			price = h.AvgCost()
		}
		total += h.MarketValue(price)
	}
	return total
}

func (s *simulation) benchmarkValue(day int) float64 {
	v := s.benchCash
	if p := s.bench.padValue(day); p > 0 {
		v += s.benchShares * p
	}
	return v
}

func (s *simulation) heldCodes() []string {
	codes := make([]string, 0, len(s.holdings))
	for code := range s.holdings {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// rebalance sells holdings whose momentum fell below the top-N cutoff.
func (s *simulation) rebalance(i int, d time.Time) map[string]bool {
	sold := make(map[string]bool)
	if !s.cfg.Rebalance || i-s.lastRebalance < s.cfg.RebalanceGap || len(s.holdings) == 0 {
		return sold
	}
	s.lastRebalance = i
	day := dayKey(d)
	ranked := rankMomentum(s.tracks, day, s.cfg.MomentumWindow)
	cut, ok := cutoff(ranked, s.cfg.MomentumTopN)
	if !ok {
		return sold
	}
	scores := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		scores[r.code] = r.mom
	}
	for _, code := range s.heldCodes() {
		t := s.byCode[code]
		row, ok := t.at(day)
		if !ok {
			continue
		}
		mom, ok := scores[code]
		if !ok {
			mom = missingMomentum
		}
		if mom >= cut {
			continue
		}
		h := s.holdings[code]
		reason := fmt.Sprintf("Momentum Fade (out of Top%d)", s.cfg.MomentumTopN)
		s.sell(d, h, h.TotalShares(), t.value(row), model.ActionRebalance, reason)
		sold[code] = true
	}
	return sold
}

func (s *simulation) exits(d time.Time, skip map[string]bool) {
	day := dayKey(d)
	for _, code := range s.heldCodes() {
		if skip[code] {
			continue
		}
		t := s.byCode[code]
		row, ok := t.at(day)
		if !ok || row+1 < s.cfg.MinHistory {
			continue
		}
		h := s.holdings[code]
		price := t.value(row)
		h.Mark(price)

		sig := s.classify.Classify(t.Frame.Head(row + 1))
		if reason := s.exitReason(h, price, d, sig); reason != "" {
			s.sell(d, h, h.TotalShares(), price, model.ActionSell, reason)
			continue
		}
		if s.cfg.PartialProfit > 0 && !h.PartialSold && h.ReturnAt(price) > s.cfg.PartialProfit {
			h.PartialSold = true
			reason := fmt.Sprintf("Partial Lock (+%.0f%%)", s.cfg.PartialProfit*100)
			s.sell(d, h, h.TotalShares()*0.5, price, model.ActionPartialSell, reason)
		}
	}
}

// exitReason applies the exit rules in priority order and returns the first
// that fires, or "".
func (s *simulation) exitReason(h *position.Holding, price float64, d time.Time, sig model.SignalDecision) string {
	cost := h.AvgCost()
	stop := math.Max(h.StopLoss, cost*(1-s.cfg.HardStop))
	drawdown := 0.0
	if h.PeakPrice > 0 {
		drawdown = (h.PeakPrice - price) / h.PeakPrice
	}
	ret := h.ReturnAt(price)

	switch {
	case h.Target > 0 && price >= h.Target:
		return "Target Profit Hit (Goal)"
	case price < stop:
		return "Structure Break"
	case drawdown > s.cfg.TrailingStop && price > cost*s.cfg.TrailingActivate:
		return "Trailing Stop"
	case sig.IsSell():
		return sig.Description
	case s.cfg.DeadMoney && h.HoldingDays(d) > s.cfg.DeadMoneyDays && math.Abs(ret) < s.cfg.DeadMoneyBand:
		return fmt.Sprintf("Dead Money (Hold > %dd, Returns < %.0f%%)", s.cfg.DeadMoneyDays, s.cfg.DeadMoneyBand*100)
	}
	return ""
}

// sell books a sale and parks the proceeds as a receivable.
func (s *simulation) sell(d time.Time, h *position.Holding, shares, price float64, action model.TradeAction, reason string) {
	sale, err := h.Sell(shares, price, d, s.cfg.Fees)
	if err != nil {
		log.Printf("[WARN] backtest: sell %s on %s: %v", h.Code, d.Format(model.DateLayout), err)
		return
	}
	s.receivables = append(s.receivables, Receivable{
		UnlockDate: d.AddDate(0, 0, s.cfg.SettlementDays),
		Amount:     sale.Net,
	})
	s.trades = append(s.trades, model.Trade{
		Date:   d,
		Action: action,
		Code:   h.Code,
		Name:   h.Name,
		Price:  price,
		Shares: sale.Shares,
		Amount: sale.Net,
		Fee:    sale.Fee,
		Reason: reason,
		PnL:    sale.PnL(),
	})
	if h.Empty() {
		delete(s.holdings, h.Code)
	}
}

type candidate struct {
	t     *track
	price float64
	sig   model.SignalDecision
}

func (s *simulation) entries(d time.Time) {
	if len(s.holdings) >= s.cfg.MaxHoldings || s.cash <= s.cfg.MinCash {
		return
	}
	day := dayKey(d)
	equity := s.equity(day)

	var whitelist map[string]bool
	if s.cfg.MomentumGate {
		whitelist = topCodes(rankMomentum(s.tracks, day, s.cfg.MomentumWindow), s.cfg.MomentumTopN)
	}

	var cands []candidate
	for _, t := range s.tracks {
		if _, held := s.holdings[t.Code]; held {
			continue
		}
		if whitelist != nil && !whitelist[t.Code] {
			continue
		}
		row, ok := t.at(day)
		if !ok || row+1 < s.cfg.MinHistory {
			continue
		}
		sig := s.classify.Classify(t.Frame.Head(row + 1))
		if sig.IsBuy() && sig.Score >= s.cfg.EntryScore {
			cands = append(cands, candidate{t: t, price: t.value(row), sig: sig})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].sig.Score != cands[j].sig.Score {
			return cands[i].sig.Score > cands[j].sig.Score
		}
		return cands[i].t.Code < cands[j].t.Code
	})

	held := make(map[string]bool, len(s.holdings))
	for _, h := range s.holdings {
		held[model.Underlying(h.Name)] = true
	}
	bought := 0
	for _, c := range cands {
		if len(s.holdings) >= s.cfg.MaxHoldings || s.cash < s.cfg.MinCash || bought >= s.cfg.MaxDailyBuys {
			break
		}
		name := c.t.Name
		if name == "" {
			name = c.t.Code
		}
		under := model.Underlying(name)
		if s.cfg.DedupeUnderlying && held[under] {
			continue
		}
		amt := strategy.PositionSize(s.cfg.Sizing, strategy.SizingInput{
			Equity:         equity,
			Cash:           s.cash,
			InitialCapital: s.cfg.InitialCapital,
			Price:          c.price,
			ATR:            c.sig.ATR,
			MaxHoldings:    s.cfg.MaxHoldings,
		})
		if amt < s.cfg.MinTrade {
			continue
		}
		h := position.NewHolding(c.t.Code, name)
		shares := amt / c.price
		if err := h.AddLot(d, shares, c.price); err != nil {
			log.Printf("[WARN] backtest: buy %s: %v", c.t.Code, err)
			continue
		}
		h.StopLoss = c.sig.StopLoss
		h.Target = c.sig.Target
		s.holdings[c.t.Code] = h
		s.cash -= amt
		s.trades = append(s.trades, model.Trade{
			Date:   d,
			Action: model.ActionBuy,
			Code:   c.t.Code,
			Name:   name,
			Price:  c.price,
			Shares: shares,
			Amount: amt,
			Reason: fmt.Sprintf("%s (%s)", c.sig.Description, s.cfg.Sizing),
		})
		held[under] = true
		bought++
	}
}
