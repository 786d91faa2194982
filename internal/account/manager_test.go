package account

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
)

// memStore counts loads and saves.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]*model.AccountDocument
	loads   int
	saves   int
	saveErr error
}

func newMemStore() *memStore { return &memStore{docs: make(map[string]*model.AccountDocument)} }

func (s *memStore) Load(_ context.Context, id string) (*model.AccountDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if d, ok := s.docs[id]; ok {
		return d.Clone(), nil
	}
	return model.NewAccountDocument(model.DefaultCapital), nil
}

func (s *memStore) Save(_ context.Context, id string, doc *model.AccountDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.docs[id] = doc.Clone()
	return nil
}

type sent struct{ title, body string }

type recordingNotifier struct{ msgs []sent }

func (n *recordingNotifier) Send(_ context.Context, title, body string) bool {
	n.msgs = append(n.msgs, sent{title, body})
	return true
}

func navSeries(code string, days map[string]float64) model.NAVSeries {
	s := model.NAVSeries{Code: code}
	for _, d := range []string{"2024-03-01", "2024-03-04", "2024-03-05", "2024-03-06"} {
		if v, ok := days[d]; ok {
			t, _ := time.ParseInLocation(model.DateLayout, d, clock.Beijing)
			s.Points = append(s.Points, model.PricePoint{Date: t, Value: v})
		}
	}
	return s
}

func TestManagerSavesOncePerOperation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	clk := clock.NewFixed(bj(2024, 3, 4, 10, 0))
	m := NewManager(store, "default_user", nil, nil, clk)

	require.NoError(t, m.Deposit(ctx, 1000, ""))
	assert.Equal(t, 1, store.saves)

	_, err := m.Buy(ctx, BuyOrder{Code: "1", Name: "甲", Price: 1, Amount: 50000})
	assert.ErrorIs(t, err, ErrInsufficientCash)
	assert.Equal(t, 1, store.saves)

	_, err = m.Buy(ctx, BuyOrder{Code: "1", Name: "甲", Price: 1, Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, 2, store.saves)

	// nothing matured yet: no save
	n, err := m.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, store.saves)

	clk.Set(bj(2024, 3, 5, 9, 0))
	n, err = m.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, store.saves)

	doc, err := m.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, doc.Capital)
	assert.Len(t, doc.Holdings, 1)
	assert.Equal(t, 3, store.saves)

	require.NoError(t, m.Reset(ctx, 5000))
	assert.Equal(t, 4, store.saves)
	doc, _ = m.Document(ctx)
	assert.Equal(t, 5000.0, doc.Capital)
}

func TestManagerSaveFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	m := NewManager(store, "x", nil, nil, clock.NewFixed(bj(2024, 3, 4, 10, 0)))
	err := m.Deposit(context.Background(), 10, "")
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, store.docs)
}

func TestManagerSettleUsesActualNAV(t *testing.T) {
	ctx := context.Background()
	f := collector.NewMockFetcher()
	f.Set(navSeries("1", map[string]float64{"2024-03-01": 1.9, "2024-03-04": 2.5}))
	clk := clock.NewFixed(bj(2024, 3, 4, 10, 0))
	m := NewManager(newMemStore(), "x", f, nil, clk)

	_, err := m.Buy(ctx, BuyOrder{Code: "1", Name: "甲", Price: 2, Amount: 1000})
	require.NoError(t, err)
	clk.Set(bj(2024, 3, 5, 9, 0))
	_, err = m.Settle(ctx)
	require.NoError(t, err)

	doc, err := m.Document(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 400, doc.Holdings[0].Shares, 1e-9)
	assert.Equal(t, 2.5, doc.Holdings[0].Cost)
}

func TestManagerSellNotifies(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.docs["x"] = holdingDoc()
	f := collector.NewMockFetcher()
	note := &recordingNotifier{}
	m := NewManager(store, "x", f, note, clock.NewFixed(bj(2024, 3, 10, 11, 0)))

	_, err := m.Sell(ctx, SellOrder{Code: "1", Price: 1})
	var pe *PenaltyError
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, note.msgs)
	assert.Equal(t, 0, store.saves)

	r, err := m.Sell(ctx, SellOrder{Code: "1", Price: 1, Reason: "stop", Force: true})
	require.NoError(t, err)
	assert.Less(t, r.PnL(), 0.0)
	require.Len(t, note.msgs, 1)
	assert.Equal(t, "🔴 平仓战报: 甲", note.msgs[0].title)
	assert.Contains(t, note.msgs[0].body, "**备注**: stop (含惩罚费 ¥1.50)")
	assert.Equal(t, 1, store.saves)
}

func TestManagerSnapshotPrices(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	doc := model.NewAccountDocument(100)
	doc.Holdings = []model.HoldingDoc{{Code: "1", Name: "甲", Shares: 100, Cost: 2,
		Lots: []model.LotDoc{{Date: "2024-01-01", Shares: 100, CostPerShare: 2}}}}
	store.docs["x"] = doc

	f := collector.NewMockFetcher()
	f.Set(navSeries("1", map[string]float64{"2024-03-05": 2.02}))
	f.Estimates["1"] = &model.Estimate{Code: "1", Price: 2.04}
	m := NewManager(store, "x", f, nil, clock.NewFixed(bj(2024, 3, 6, 14, 0)))

	s, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 204, s.MarketValue, 1e-9)
	assert.InDelta(t, 0.02, s.Holdings[0].PnLPct, 1e-12)

	dead, err := m.DeadMoney(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 65, dead[0].Days)
	assert.Equal(t, 0, store.saves)
}

func TestJSONFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewJSONFileStore(filepath.Join(t.TempDir(), "accounts"))

	doc, err := s.Load(ctx, "default_user")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCapital, doc.Capital)

	doc = holdingDoc()
	doc.Capital = 123.45
	require.NoError(t, s.Save(ctx, "default_user", doc))
	got, err := s.Load(ctx, "default_user")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = s.Load(ctx, "../escape")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.Load(ctx, "default_user")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCapital, doc.Capital)

	doc = holdingDoc()
	require.NoError(t, s.Save(ctx, "default_user", doc))
	doc.Capital = 42
	require.NoError(t, s.Save(ctx, "default_user", doc))

	got, err := s.Load(ctx, "default_user")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}
