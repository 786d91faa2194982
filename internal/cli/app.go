package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"WaveSentinel/internal/account"
	"WaveSentinel/internal/backtest"
	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/config"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/notifier"
	"WaveSentinel/internal/recorder"
)

// App wires the services a command needs.
type App struct {
	Config   *config.Config
	Clock    clock.Clock
	Fetcher  collector.Fetcher
	Pools    collector.PoolProvider
	Account  *account.Manager
	Recorder recorder.Recorder
	Out      io.Writer

	closers []io.Closer
}

// NewApp builds the live stack from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	clk := clock.System{}
	em := collector.NewEastmoneyFetcher(collector.EastmoneyOptions{
		HistoryURL:  cfg.DataSource.HistoryURL,
		EstimateURL: cfg.DataSource.EstimateURL,
		Timeout:     cfg.Timeout(),
		Retries:     cfg.DataSource.Retries,
		Proxy:       cfg.Proxy,
	}, clk)
	app := &App{
		Config:  cfg,
		Clock:   clk,
		Fetcher: collector.NewCachedFetcher(em, cfg.CacheTTL(), clk),
		Pools:   collector.NewPools(cfg.StaticPools(), collector.NewMarketRanker(cfg.DataSource.HistoryURL, 0, clk)),
		Out:     os.Stdout,
	}

	var store account.Store
	switch cfg.Account.Store {
	case config.StoreSQLite:
		ss, err := account.NewSQLiteStore(cfg.Account.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open account store: %w", err)
		}
		app.closers = append(app.closers, ss)
		store = ss
	default:
		store = account.NewJSONFileStore(cfg.Account.Dir)
	}

	var trades notifier.Notifier = notifier.Noop{}
	if cfg.Feishu.Webhook != "" {
		trades = notifier.NewFeishuNotifier(cfg.Feishu.Webhook, 0, clk)
	}
	app.Account = account.NewManager(store, cfg.Account.ID, app.Fetcher, trades, clk)

	app.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		} else {
			app.Recorder = sr
			app.closers = append(app.closers, sr)
		}
	}
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("[WARN] close: %v", err)
		}
	}
}

func (a *App) collector() *collector.Collector {
	return collector.NewCollector(a.Fetcher, a.Clock)
}

// BenchmarkCode is the CSI 300 tracker used as the buy-and-hold benchmark.
const BenchmarkCode = "000300"

// loadInstruments downloads frames for a pool and the benchmark.
func (a *App) loadInstruments(ctx context.Context, pool string, limit int) ([]backtest.Instrument, *backtest.Instrument, error) {
	funds, err := a.Pools.ListPool(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	opts := collector.DefaultPreloadOptions()
	opts.Workers = a.Config.Backtest.Workers
	opts.Limit = limit
	opts.Progress = func(done, total int) {
		if done == total || done%10 == 0 {
			fmt.Fprintf(a.Out, "\r%s", dimStyle.Render(fmt.Sprintf("loading %d/%d", done, total)))
		}
	}
	results := collector.Preload(ctx, a.Fetcher, funds, opts)
	fmt.Fprintln(a.Out)

	var instruments []backtest.Instrument
	for _, r := range collector.Loaded(results) {
		instruments = append(instruments, backtest.Instrument{Code: r.Fund.Code, Name: r.Fund.Name, Frame: r.Frame})
	}
	if len(instruments) == 0 {
		return nil, nil, fmt.Errorf("pool %s: %w", pool, backtest.ErrNoInstruments)
	}

	var bench *backtest.Instrument
	if f, err := a.loadFrame(ctx, BenchmarkCode); err == nil {
		bench = &backtest.Instrument{Code: BenchmarkCode, Name: "沪深300", Frame: f}
	} else {
		log.Printf("[WARN] benchmark unavailable: %v", err)
	}
	return instruments, bench, nil
}

func (a *App) loadFrame(ctx context.Context, code string) (*calculator.Frame, error) {
	series, err := a.Fetcher.FetchHistory(ctx, code)
	if err != nil {
		return nil, err
	}
	return calculator.Compute(series)
}

// fundName resolves a display name from the estimate feed.
func (a *App) fundName(ctx context.Context, code string) string {
	if est, err := a.Fetcher.FetchEstimate(ctx, code); err == nil && est.Name != "" {
		return est.Name
	}
	return code
}

func (a *App) recordRun(kind, pool string, cfg backtest.Config, res *backtest.Result) {
	id, err := a.Recorder.RecordBacktest(&recorder.BacktestRun{
		At:      a.Clock.Now(),
		Kind:    kind,
		Pool:    pool,
		Start:   cfg.Start,
		End:     cfg.End,
		Sizing:  string(cfg.Sizing),
		Summary: res.Summary,
		Trades:  res.Trades,
	})
	if err != nil {
		log.Printf("[ERROR] record backtest: %v", err)
		return
	}
	if id != "" {
		fmt.Fprintln(a.Out, dimStyle.Render("run id: "+id))
	}
}

func fundOf(code, name string) model.Fund { return model.Fund{Code: code, Name: name} }
