package account

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
)

// Notifier delivers trade reports.
type Notifier interface {
	Send(ctx context.Context, title, body string) bool
}

// Manager runs account operations against a Store. Each operation loads the
// latest document, applies itself and saves exactly once on success. A failed
// operation saves nothing.
type Manager struct {
	mu       sync.Mutex
	store    Store
	id       string
	fetcher  collector.Fetcher
	notifier Notifier
	clock    clock.Clock
}

// NewManager creates a Manager for account id. fetcher and notifier may be
// nil: prices then fall back to cost and no reports are sent.
func NewManager(store Store, id string, fetcher collector.Fetcher, notifier Notifier, c clock.Clock) *Manager {
	if c == nil {
		c = clock.System{}
	}
	return &Manager{store: store, id: id, fetcher: fetcher, notifier: notifier, clock: c}
}

// update applies fn to a freshly loaded account and saves when fn reports a
// change.
func (m *Manager) update(ctx context.Context, fn func(a *Account) (bool, error)) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Load(ctx, m.id)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	a := New(doc)
	changed, err := fn(a)
	if err != nil {
		return nil, err
	}
	if !changed {
		return a, nil
	}
	if err := m.store.Save(ctx, m.id, a.doc); err != nil {
		log.Printf("[ERROR] failed to save account %s: %v", m.id, err)
		return nil, fmt.Errorf("save account: %w", err)
	}
	return a, nil
}

func (m *Manager) load(ctx context.Context) (*Account, error) {
	return m.update(ctx, func(*Account) (bool, error) { return false, nil })
}

// Document returns the stored account.
func (m *Manager) Document(ctx context.Context) (*model.AccountDocument, error) {
	a, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return a.Document(), nil
}

func (m *Manager) Buy(ctx context.Context, o BuyOrder) (time.Time, error) {
	var settle time.Time
	_, err := m.update(ctx, func(a *Account) (bool, error) {
		var err error
		settle, err = a.Buy(m.clock.Now(), o)
		return err == nil, err
	})
	if err != nil {
		return time.Time{}, err
	}
	log.Printf("[INFO] account %s: buy order %s ¥%.2f, settles %s", m.id, o.Code, o.Amount, settle.Format(model.DateLayout))
	return settle, nil
}

// Sell redeems a holding and sends a trade report.
func (m *Manager) Sell(ctx context.Context, o SellOrder) (*SaleReport, error) {
	var report *SaleReport
	_, err := m.update(ctx, func(a *Account) (bool, error) {
		var err error
		report, err = a.Sell(m.clock.Now(), o)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] account %s: sold %s pnl ¥%+.2f", m.id, o.Code, report.PnL())
	if m.notifier != nil {
		title, body := report.Message()
		if !m.notifier.Send(ctx, title, body) {
			log.Printf("[WARN] trade report for %s was not delivered", o.Code)
		}
	}
	return report, nil
}

// Message renders the closing report.
func (r SaleReport) Message() (title, body string) {
	icon := "🟢"
	if r.PnL() < 0 {
		icon = "🔴"
	}
	title = fmt.Sprintf("%s 平仓战报: %s", icon, r.Name)
	body = fmt.Sprintf("**动作**: 卖出平仓\n**净值**: %.4f\n**金额**: ¥%.2f\n**盈亏**: ¥%+.2f (%+.2f%%)\n**备注**: %s%s",
		r.Price, r.Net, r.PnL(), r.PnLPct()*100, r.Reason, r.FeeNote())
	return title, body
}

func (m *Manager) Deposit(ctx context.Context, amount float64, note string) error {
	_, err := m.update(ctx, func(a *Account) (bool, error) {
		err := a.Deposit(m.clock.Now(), amount, note)
		return err == nil, err
	})
	return err
}

func (m *Manager) Withdraw(ctx context.Context, amount float64, note string) error {
	_, err := m.update(ctx, func(a *Account) (bool, error) {
		err := a.Withdraw(m.clock.Now(), amount, note)
		return err == nil, err
	})
	return err
}

// Settle confirms matured pending orders at the trade date's actual NAV.
// Nothing is saved when no order matured.
func (m *Manager) Settle(ctx context.Context) (int, error) {
	n := 0
	_, err := m.update(ctx, func(a *Account) (bool, error) {
		now := m.clock.Now()
		if len(a.Matured(now)) == 0 {
			return false, nil
		}
		n = a.Settle(now, m.navLookup(ctx))
		return n > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[INFO] account %s: settled %d orders", m.id, n)
	}
	return n, nil
}

func (m *Manager) navLookup(ctx context.Context) NAVLookup {
	if m.fetcher == nil {
		return nil
	}
	cache := make(map[string]model.NAVSeries)
	return func(code string, day time.Time) (float64, bool) {
		s, ok := cache[code]
		if !ok {
			var err error
			s, err = m.fetcher.FetchHistory(ctx, code)
			if err != nil {
				log.Printf("[WARN] nav history for %s unavailable, keeping order price: %v", code, err)
			}
			cache[code] = s
		}
		i, ok := s.IndexOf(day)
		if !ok {
			return 0, false
		}
		return s.Points[i].Value, true
	}
}

func (m *Manager) Reset(ctx context.Context, capital float64) error {
	_, err := m.update(ctx, func(a *Account) (bool, error) {
		a.Reset(capital)
		return true, nil
	})
	if err == nil {
		log.Printf("[INFO] account %s reset", m.id)
	}
	return err
}

// Snapshot values the account at current prices.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	a, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	s := a.Snapshot(m.clock.Now(), m.priceFunc(ctx))
	return &s, nil
}

// DeadMoney lists stagnant holdings at current prices.
func (m *Manager) DeadMoney(ctx context.Context) ([]DeadPosition, error) {
	a, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return a.DeadMoney(m.clock.Now(), m.priceFunc(ctx)), nil
}

func (m *Manager) priceFunc(ctx context.Context) PriceFunc {
	if m.fetcher == nil {
		return nil
	}
	today := clock.Today(m.clock)
	return func(h model.HoldingDoc) float64 {
		series, err := m.fetcher.FetchHistory(ctx, h.Code)
		if err != nil {
			log.Printf("[WARN] price for %s unavailable, using cost: %v", h.Code, err)
		}
		est, err := m.fetcher.FetchEstimate(ctx, h.Code)
		if err != nil {
			est = nil
		}
		p, _ := collector.SmartPrice(series, est, today)
		return p
	}
}
