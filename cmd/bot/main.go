package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"WaveSentinel/internal/account"
	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/config"
	"WaveSentinel/internal/notifier"
	"WaveSentinel/internal/radar"
	"WaveSentinel/internal/recorder"
	"WaveSentinel/internal/scheduler"
	"WaveSentinel/internal/trace"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] WaveSentinel starting...")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	if err := trace.Init(cfg.Trace.Enabled, nil); err != nil {
		log.Printf("[WARN] tracing disabled: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] trace shutdown: %v", err)
		}
	}()

	clk := clock.System{}

	// Init fetcher
	em := collector.NewEastmoneyFetcher(collector.EastmoneyOptions{
		HistoryURL:  cfg.DataSource.HistoryURL,
		EstimateURL: cfg.DataSource.EstimateURL,
		Timeout:     cfg.Timeout(),
		Retries:     cfg.DataSource.Retries,
		Proxy:       cfg.Proxy,
	}, clk)
	fetcher := collector.NewCachedFetcher(em, cfg.CacheTTL(), clk)
	log.Printf("[INFO] data source: %s", em.Name())

	ranker := collector.NewMarketRanker(cfg.DataSource.HistoryURL, 0, clk)
	pools := collector.NewPools(cfg.StaticPools(), ranker)

	// Init notifiers
	var (
		channels notifier.Multi
		feishu   *notifier.FeishuNotifier
		tn       *notifier.TelegramNotifier
	)
	if cfg.Feishu.Webhook != "" {
		feishu = notifier.NewFeishuNotifier(cfg.Feishu.Webhook, 0, clk)
		channels = append(channels, feishu)
	}
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, cfg.Telegram.APIURL)
		channels = append(channels, tn)
	}

	// Init account
	var store account.Store
	switch cfg.Account.Store {
	case config.StoreSQLite:
		ss, err := account.NewSQLiteStore(cfg.Account.SQLitePath)
		if err != nil {
			log.Fatalf("[FATAL] open account store: %v", err)
		}
		defer ss.Close()
		store = ss
	default:
		store = account.NewJSONFileStore(cfg.Account.Dir)
	}
	am := account.NewManager(store, cfg.Account.ID, fetcher, channels, clk)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	scanner := radar.NewScanner(collector.NewCollector(fetcher, clk), nil)
	sched := scheduler.NewScheduler(ctx, scanner, pools, am, channels, rec)
	if feishu != nil {
		sched.Cards = feishu
	}
	sched.ScanOpts = radar.ScanOptions{
		MinScore:        cfg.Radar.MinScore,
		Limit:           cfg.Radar.Limit,
		SuggestFraction: cfg.Radar.SuggestFraction,
		Workers:         cfg.Radar.Workers,
	}
	if err := sched.RegisterAll(cfg.Schedule.PatrolCron, cfg.Schedule.SettleCron, cfg.Schedule.RegimeCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing daily patrol now")
		go sched.RunDailyNow()
	}

	log.Println("[INFO] WaveSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] WaveSentinel stopped")
}
