package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/model"
)

// Pool selectors understood by Pools.ListPool.
const (
	PoolDefault  = "default"
	PoolOTF      = "otf"
	PoolUnbiased = "unbiased"
	PoolSector   = "sector"
	PoolMarket   = "market"
	PoolRadar    = "radar"
)

var ErrUnknownPool = errors.New("unknown pool")

// PoolProvider lists the funds of a named watch pool.
type PoolProvider interface {
	ListPool(ctx context.Context, selector string) ([]model.Fund, error)
}

// Pools serves the curated lists and, when a ranker is set, the market-wide
// pools built from today's return ranking.
type Pools struct {
	Static map[string][]model.Fund
	Ranker *MarketRanker
}

// NewPools returns the built-in curated pools. Static entries override them.
func NewPools(static map[string][]model.Fund, ranker *MarketRanker) *Pools {
	p := &Pools{
		Static: map[string][]model.Fund{
			PoolOTF:      DefaultOTFPool,
			PoolUnbiased: DefaultUnbiasedPool,
			PoolSector:   SectorFunds(),
		},
		Ranker: ranker,
	}
	for name, funds := range static {
		if len(funds) > 0 {
			p.Static[name] = funds
		}
	}
	return p
}

func (p *Pools) ListPool(ctx context.Context, selector string) ([]model.Fund, error) {
	switch selector {
	case "", PoolDefault:
		out := append([]model.Fund(nil), p.Static[PoolUnbiased]...)
		return append(out, p.Static[PoolOTF]...), nil
	case PoolMarket, PoolRadar:
		if p.Ranker == nil {
			return nil, fmt.Errorf("pool %q: no market ranker configured", selector)
		}
		rows, err := p.Ranker.Fetch(ctx)
		if err != nil {
			log.Printf("[WARN] market ranking unavailable, using fallback pool: %v", err)
			return append([]model.Fund(nil), FallbackPool...), nil
		}
		if selector == PoolRadar {
			return RadarPool(rows, RadarPoolSize), nil
		}
		return MarketPool(rows, MarketCandidates, MarketPoolSize), nil
	}
	if funds, ok := p.Static[selector]; ok {
		return append([]model.Fund(nil), funds...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPool, selector)
}

const (
	MarketCandidates = 600
	MarketPoolSize   = 200
	RadarPoolSize    = 300
)

var (
	// bond, money-market, wealth, closed-period, holding-period, pension,
	// crypto, Hong Kong and QDII products
	marketExclude = regexp.MustCompile(`债|货币|理财|美元|定开|持有|养老|以太|比特币|港股|QDII`)
	radarExclude  = regexp.MustCompile(`债|货币|理财|定开|持有|养老|以太|比特`)
)

// RankRow is one line of the open-end fund return ranking. Missing returns
// are NaN.
type RankRow struct {
	Code     string
	Name     string
	Return6M float64
	Return1Y float64
}

// MarketPool keeps equity-like funds with a one-year record, takes the best
// candidates by six-month return, collapses share classes of one fund
// preferring the C class, and returns at most size funds in rank order.
func MarketPool(rows []RankRow, candidates, size int) []model.Fund {
	var kept []RankRow
	for _, r := range rows {
		if marketExclude.MatchString(r.Name) || math.IsNaN(r.Return1Y) {
			continue
		}
		kept = append(kept, r)
	}
	sortBySixMonth(kept)
	if len(kept) > candidates {
		kept = kept[:candidates]
	}

	var order []string
	best := make(map[string]RankRow)
	for _, r := range kept {
		key := model.Underlying(r.Name)
		cur, seen := best[key]
		switch {
		case !seen:
			order = append(order, key)
			best[key] = r
		case model.IsClassC(r.Name) && !model.IsClassC(cur.Name):
			best[key] = r
		}
	}
	out := make([]model.Fund, 0, size)
	for _, key := range order {
		if len(out) >= size {
			break
		}
		r := best[key]
		out = append(out, model.Fund{Code: r.Code, Name: r.Name})
	}
	return out
}

// RadarPool is the wider daily scan: top funds by six-month return with
// every share class kept.
func RadarPool(rows []RankRow, size int) []model.Fund {
	var kept []RankRow
	for _, r := range rows {
		if radarExclude.MatchString(r.Name) || math.IsNaN(r.Return6M) {
			continue
		}
		kept = append(kept, r)
	}
	sortBySixMonth(kept)
	if len(kept) > size {
		kept = kept[:size]
	}
	out := make([]model.Fund, len(kept))
	for i, r := range kept {
		out[i] = model.Fund{Code: r.Code, Name: r.Name}
	}
	return out
}

func sortBySixMonth(rows []RankRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Return6M, rows[j].Return6M
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
}

// MarketRanker downloads Eastmoney's open-end fund ranking.
type MarketRanker struct {
	client *resty.Client
	clock  clock.Clock
}

func NewMarketRanker(baseURL string, timeout time.Duration, c clock.Clock) *MarketRanker {
	if baseURL == "" {
		baseURL = DefaultHistoryURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if c == nil {
		c = clock.System{}
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0")
	client.SetHeader("Referer", "http://fund.eastmoney.com/fundguzhi.html")
	return &MarketRanker{client: client, clock: c}
}

var rankDatas = regexp.MustCompile(`(?s)datas:(\[.*?\])`)

// Fetch returns every ranked fund.
func (m *MarketRanker) Fetch(ctx context.Context) ([]RankRow, error) {
	now := m.clock.Now()
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"op":         "ph",
			"dt":         "kf",
			"ft":         "all",
			"rs":         "",
			"gs":         "0",
			"sc":         "6yzf",
			"st":         "desc",
			"sd":         now.AddDate(-1, 0, 0).Format(model.DateLayout),
			"ed":         now.Format(model.DateLayout),
			"qdii":       "",
			"tabSubtype": ",,,,,",
			"pi":         "1",
			"pn":         "20000",
			"dx":         "1",
		}).
		Get("/data/rankhandler.aspx")
	if err != nil {
		return nil, fmt.Errorf("fund ranking: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fund ranking: status %d", resp.StatusCode())
	}
	return parseRanking(resp.Body())
}

const (
	rankFieldCode     = 0
	rankFieldName     = 1
	rankField6M       = 10
	rankField1Y       = 11
	rankMinFieldCount = 12
)

func parseRanking(body []byte) ([]RankRow, error) {
	m := rankDatas.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("fund ranking: %w", ErrNoData)
	}
	var lines []string
	if err := json.Unmarshal(m[1], &lines); err != nil {
		return nil, fmt.Errorf("fund ranking: decode: %w", err)
	}
	rows := make([]RankRow, 0, len(lines))
	for _, line := range lines {
		f := strings.Split(line, ",")
		if len(f) < rankMinFieldCount || f[rankFieldCode] == "" {
			continue
		}
		rows = append(rows, RankRow{
			Code:     f[rankFieldCode],
			Name:     f[rankFieldName],
			Return6M: parsePct(f[rankField6M]),
			Return1Y: parsePct(f[rankField1Y]),
		})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fund ranking: %w", ErrNoData)
	}
	return rows, nil
}

func parsePct(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
