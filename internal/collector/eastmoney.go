package collector

import (
	"context"
	"encoding/json"
	"fmt"
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

const (
	DefaultHistoryURL  = "http://fund.eastmoney.com"
	DefaultEstimateURL = "http://fundgz.1234567.com.cn"
)

// EastmoneyOptions configures the Eastmoney endpoints.
type EastmoneyOptions struct {
	HistoryURL  string
	EstimateURL string
	Timeout     time.Duration
	Retries     int
	Proxy       string
}

// EastmoneyFetcher implements Fetcher using Eastmoney's public fund pages:
// the pingzhongdata script for NAV history and the fundgz JSONP feed for
// intraday estimates.
type EastmoneyFetcher struct {
	history  *resty.Client
	estimate *resty.Client
	clock    clock.Clock
}

// NewEastmoneyFetcher creates a fetcher with optional proxy support.
func NewEastmoneyFetcher(opts EastmoneyOptions, c clock.Clock) *EastmoneyFetcher {
	if opts.HistoryURL == "" {
		opts.HistoryURL = DefaultHistoryURL
	}
	if opts.EstimateURL == "" {
		opts.EstimateURL = DefaultEstimateURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if c == nil {
		c = clock.System{}
	}
	return &EastmoneyFetcher{
		history:  newClient(opts.HistoryURL, opts.Timeout, opts.Retries, opts.Proxy),
		estimate: newClient(opts.EstimateURL, opts.Timeout, opts.Retries, opts.Proxy),
		clock:    c,
	}
}

func newClient(baseURL string, timeout time.Duration, retries int, proxy string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetRetryCount(retries)
	client.SetHeader("User-Agent", "Mozilla/5.0")
	client.SetHeader("Referer", "http://fund.eastmoney.com/")
	if proxy != "" {
		client.SetProxy(proxy)
	}
	return client
}

func (f *EastmoneyFetcher) Name() string { return "eastmoney" }

var netWorthTrend = regexp.MustCompile(`(?s)Data_netWorthTrend\s*=\s*(\[.*?\]);`)

type netWorthPoint struct {
	X int64    `json:"x"`
	Y *float64 `json:"y"`
}

// FetchHistory downloads the unit NAV history of a fund.
func (f *EastmoneyFetcher) FetchHistory(ctx context.Context, code string) (model.NAVSeries, error) {
	resp, err := f.history.R().
		SetContext(ctx).
		SetQueryParam("v", strconv.FormatInt(f.clock.Now().UnixMilli(), 10)).
		Get("/pingzhongdata/" + code + ".js")
	if err != nil {
		return model.NAVSeries{}, fmt.Errorf("eastmoney history %s: %w", code, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return model.NAVSeries{}, fmt.Errorf("eastmoney history %s: %w", code, ErrNoData)
	}
	if resp.StatusCode() != http.StatusOK {
		return model.NAVSeries{}, fmt.Errorf("eastmoney history %s: status %d", code, resp.StatusCode())
	}
	return parseNetWorthTrend(code, resp.Body())
}

func parseNetWorthTrend(code string, body []byte) (model.NAVSeries, error) {
	m := netWorthTrend.FindSubmatch(body)
	if m == nil {
		return model.NAVSeries{}, fmt.Errorf("eastmoney history %s: %w", code, ErrNoData)
	}
	var raw []netWorthPoint
	if err := json.Unmarshal(m[1], &raw); err != nil {
		return model.NAVSeries{}, fmt.Errorf("eastmoney history %s: decode: %w", code, err)
	}

	pts := make([]model.PricePoint, 0, len(raw))
	for _, p := range raw {
		if p.Y == nil || *p.Y <= 0 {
			continue
		}
		day := model.TruncateDay(time.UnixMilli(p.X).In(clock.Beijing))
		pts = append(pts, model.PricePoint{Date: day, Value: *p.Y})
	}
	if len(pts) == 0 {
		return model.NAVSeries{}, fmt.Errorf("eastmoney history %s: %w", code, ErrNoData)
	}

	// the feed is chronological in practice, but corrections can repeat a day
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	dedup := pts[:1]
	for _, p := range pts[1:] {
		if model.SameDay(p.Date, dedup[len(dedup)-1].Date) {
			dedup[len(dedup)-1] = p
			continue
		}
		dedup = append(dedup, p)
	}
	return model.NAVSeries{Code: code, Points: dedup}, nil
}

var jsonp = regexp.MustCompile(`(?s)\((.*)\)`)

type fundgzPayload struct {
	Code      string `json:"fundcode"`
	Name      string `json:"name"`
	NAVDate   string `json:"jzrq"`
	NAV       string `json:"dwjz"`
	Estimate  string `json:"gsz"`
	ChangePct string `json:"gszzl"`
	Time      string `json:"gztime"`
}

// FetchEstimate returns the intraday NAV estimate.
func (f *EastmoneyFetcher) FetchEstimate(ctx context.Context, code string) (*model.Estimate, error) {
	resp, err := f.estimate.R().
		SetContext(ctx).
		SetQueryParam("rt", strconv.FormatInt(f.clock.Now().UnixMilli(), 10)).
		Get("/js/" + code + ".js")
	if err != nil {
		return nil, fmt.Errorf("fundgz %s: %w", code, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("fundgz %s: %w", code, ErrNoData)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fundgz %s: status %d", code, resp.StatusCode())
	}
	return parseEstimate(code, resp.Body())
}

func parseEstimate(code string, body []byte) (*model.Estimate, error) {
	m := jsonp.FindSubmatch(body)
	if m == nil || len(strings.TrimSpace(string(m[1]))) == 0 {
		return nil, fmt.Errorf("fundgz %s: %w", code, ErrNoData)
	}
	var p fundgzPayload
	if err := json.Unmarshal(m[1], &p); err != nil {
		return nil, fmt.Errorf("fundgz %s: decode: %w", code, err)
	}
	price, err := strconv.ParseFloat(p.Estimate, 64)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("fundgz %s: bad estimate %q: %w", code, p.Estimate, ErrNoData)
	}
	change, _ := strconv.ParseFloat(p.ChangePct, 64)
	asOf, err := time.ParseInLocation("2006-01-02 15:04", p.Time, clock.Beijing)
	if err != nil {
		return nil, fmt.Errorf("fundgz %s: bad time %q: %w", code, p.Time, err)
	}
	return &model.Estimate{Code: code, Name: p.Name, Price: price, ChangePct: change, AsOf: asOf}, nil
}
