package collector

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WaveSentinel/internal/clock"
)

// 2024-01-02, 2024-01-03 and 2024-01-04 at midnight Beijing time
const pingzhong = `var fS_name = "test";var Data_netWorthTrend = [` +
	`{"x":1704124800000,"y":1.0010,"equityReturn":0,"unitMoney":""},` +
	`{"x":1704211200000,"y":1.0120,"equityReturn":1.1,"unitMoney":""},` +
	`{"x":1704211200000,"y":1.0125,"equityReturn":1.1,"unitMoney":""},` +
	`{"x":1704297600000,"y":null,"equityReturn":0,"unitMoney":""}];var Data_ACWorthTrend = [];`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pingzhongdata/000001.js", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("v"))
		_, _ = w.Write([]byte(pingzhong))
	})
	mux.HandleFunc("/pingzhongdata/000002.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`var fS_name = "empty";`))
	})
	mux.HandleFunc("/js/000001.js", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("rt"))
		_, _ = w.Write([]byte(`jsonpgz({"fundcode":"000001","name":"测试基金","jzrq":"2024-01-03","dwjz":"1.0125","gsz":"1.0188","gszzl":"0.62","gztime":"2024-01-04 14:30"});`))
	})
	mux.HandleFunc("/js/000002.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`jsonpgz();`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEastmoneyFetchHistory(t *testing.T) {
	srv := newTestServer(t)
	f := NewEastmoneyFetcher(EastmoneyOptions{HistoryURL: srv.URL, EstimateURL: srv.URL, Timeout: time.Second}, nil)

	s, err := f.FetchHistory(context.Background(), "000001")
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "000001", s.Code)
	assert.Equal(t, 2, s.Points[0].Date.Day())
	// the repeated day keeps the later correction
	assert.InDelta(t, 1.0125, s.Points[1].Value, 1e-12)

	_, err = f.FetchHistory(context.Background(), "000002")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = f.FetchHistory(context.Background(), "999999")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestEastmoneyFetchEstimate(t *testing.T) {
	srv := newTestServer(t)
	f := NewEastmoneyFetcher(EastmoneyOptions{HistoryURL: srv.URL, EstimateURL: srv.URL}, clock.NewFixed(time.Now()))

	e, err := f.FetchEstimate(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, "测试基金", e.Name)
	assert.InDelta(t, 1.0188, e.Price, 1e-12)
	assert.InDelta(t, 0.62, e.ChangePct, 1e-12)
	assert.Equal(t, time.Date(2024, 1, 4, 14, 30, 0, 0, clock.Beijing), e.AsOf)

	_, err = f.FetchEstimate(context.Background(), "000002")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestParseRanking(t *testing.T) {
	body := `var rankData = {datas:[` +
		`"000001,甲成长混合A,JCZ,2024-01-04,1.2,1.5,0.3,1,2,3,25.5,40.1,,",` +
		`"000002,乙债券C,YZQ,2024-01-04,1.0,1.0,0.0,0,0,0,1.0,2.0,,",` +
		`"000003,丙新股,BXG,2024-01-04,1.0,1.0,0.0,0,0,0,,,,",` +
		`"short,row"` +
		`],allRecords:3,pageIndex:1};`
	rows, err := parseRanking([]byte(body))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "甲成长混合A", rows[0].Name)
	assert.InDelta(t, 25.5, rows[0].Return6M, 1e-12)
	assert.InDelta(t, 40.1, rows[0].Return1Y, 1e-12)
	assert.True(t, math.IsNaN(rows[2].Return6M))
	assert.True(t, math.IsNaN(rows[2].Return1Y))

	_, err = parseRanking([]byte(`var rankData = {};`))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMarketRankerFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/rankhandler.aspx", r.URL.Path)
		assert.Equal(t, "6yzf", r.URL.Query().Get("sc"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("ed"))
		assert.Equal(t, "2023-03-01", r.URL.Query().Get("sd"))
		_, _ = w.Write([]byte(`var rankData = {datas:["000001,甲,J,2024-03-01,1,1,0,0,0,0,5.0,9.0,,"]};`))
	}))
	defer srv.Close()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, clock.Beijing)
	rows, err := NewMarketRanker(srv.URL, time.Second, clock.NewFixed(now)).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "000001", rows[0].Code)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	_, err = NewMarketRanker(bad.URL, time.Second, nil).Fetch(context.Background())
	assert.Error(t, err)
}
