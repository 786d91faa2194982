package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"WaveSentinel/internal/backtest"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/strategy"
)

// Account store backends.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// PoolEntry is one fund listed in a static pool override.
type PoolEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		HistoryURL      string `yaml:"history_url"`
		EstimateURL     string `yaml:"estimate_url"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		Retries         int    `yaml:"retries"`
		CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
	} `yaml:"data_source"`
	Pools struct {
		Default string                 `yaml:"default"`
		Static  map[string][]PoolEntry `yaml:"static"`
	} `yaml:"pools"`
	Feishu struct {
		Webhook string `yaml:"webhook"`
	} `yaml:"feishu"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		APIURL   string `yaml:"api_url"`
	} `yaml:"telegram"`
	Account struct {
		Store          string  `yaml:"store"`
		Dir            string  `yaml:"dir"`
		SQLitePath     string  `yaml:"sqlite_path"`
		ID             string  `yaml:"id"`
		InitialCapital float64 `yaml:"initial_capital"`
	} `yaml:"account"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		PatrolCron string `yaml:"patrol_cron"`
		SettleCron string `yaml:"settle_cron"`
		RegimeCron string `yaml:"regime_cron"`
	} `yaml:"schedule"`
	Radar struct {
		MinScore        int     `yaml:"min_score"`
		Limit           int     `yaml:"limit"`
		Workers         int     `yaml:"workers"`
		SuggestFraction float64 `yaml:"suggest_fraction"`
	} `yaml:"radar"`
	Backtest struct {
		Pool           string  `yaml:"pool"`
		InitialCapital float64 `yaml:"initial_capital"`
		MonthlyDeposit float64 `yaml:"monthly_deposit"`
		MaxHoldings    int     `yaml:"max_holdings"`
		Sizing         string  `yaml:"sizing"`
		RuleSet        string  `yaml:"rule_set"`
		Start          string  `yaml:"start"`
		End            string  `yaml:"end"`
		Workers        int     `yaml:"workers"`
		FundLimit      int     `yaml:"fund_limit"`
	} `yaml:"backtest"`
	Trace struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"trace"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FEISHU_WEBHOOK"); v != "" {
		c.Feishu.Webhook = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("ACCOUNT_STORE"); v != "" {
		c.Account.Store = v
	}
	if v := os.Getenv("ACCOUNT_ID"); v != "" {
		c.Account.ID = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Account.InitialCapital = f
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_PATROL"); v != "" {
		c.Schedule.PatrolCron = v
	}
	if v := os.Getenv("TRACE_ENABLED"); v != "" {
		c.Trace.Enabled, _ = strconv.ParseBool(v)
	}
}

func (c *Config) applyDefaults() {
	if c.DataSource.TimeoutSeconds == 0 {
		c.DataSource.TimeoutSeconds = 10
	}
	if c.DataSource.CacheTTLMinutes == 0 {
		c.DataSource.CacheTTLMinutes = 30
	}
	if c.Pools.Default == "" {
		c.Pools.Default = "default"
	}
	if c.Account.Store == "" {
		c.Account.Store = StoreJSON
	}
	if c.Account.Dir == "" {
		c.Account.Dir = "data/accounts"
	}
	if c.Account.SQLitePath == "" {
		c.Account.SQLitePath = "data/accounts.db"
	}
	if c.Account.ID == "" {
		c.Account.ID = "default"
	}
	if c.Account.InitialCapital == 0 {
		c.Account.InitialCapital = model.DefaultCapital
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/wave_sentinel.db"
	}
	if c.Schedule.PatrolCron == "" {
		c.Schedule.PatrolCron = "0 30 14 * * 1-5"
	}
	if c.Schedule.SettleCron == "" {
		c.Schedule.SettleCron = "0 0 22 * * 1-5"
	}
	if c.Schedule.RegimeCron == "" {
		c.Schedule.RegimeCron = "0 0 9 * * 1"
	}
	if c.Radar.MinScore == 0 {
		c.Radar.MinScore = 70
	}
	if c.Radar.Limit == 0 {
		c.Radar.Limit = 15
	}
	if c.Radar.Workers == 0 {
		c.Radar.Workers = 8
	}
	if c.Radar.SuggestFraction == 0 {
		c.Radar.SuggestFraction = 0.10
	}
	if c.Backtest.Pool == "" {
		c.Backtest.Pool = "unbiased"
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = model.DefaultCapital
	}
	if c.Backtest.MaxHoldings == 0 {
		c.Backtest.MaxHoldings = 10
	}
	if c.Backtest.Sizing == "" {
		c.Backtest.Sizing = string(strategy.SizingKelly)
	}
	if c.Backtest.RuleSet == "" {
		c.Backtest.RuleSet = string(model.RuleSetRich)
	}
	if c.Backtest.Workers == 0 {
		c.Backtest.Workers = 10
	}
	if c.Backtest.FundLimit == 0 {
		c.Backtest.FundLimit = 100
	}
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks value ranges and formats shared by every command.
func (c *Config) Validate() error {
	switch c.Account.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("account.store must be %q or %q, got %q", StoreJSON, StoreSQLite, c.Account.Store)
	}
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.DataSource.TimeoutSeconds < 0 || c.DataSource.Retries < 0 {
		return fmt.Errorf("data_source timeout and retries must not be negative")
	}
	for name, spec := range map[string]string{
		"schedule.patrol_cron": c.Schedule.PatrolCron,
		"schedule.settle_cron": c.Schedule.SettleCron,
		"schedule.regime_cron": c.Schedule.RegimeCron,
	} {
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Radar.SuggestFraction <= 0 || c.Radar.SuggestFraction > 1 {
		return fmt.Errorf("radar.suggest_fraction must be in (0, 1]")
	}
	if _, err := c.BacktestConfig(); err != nil {
		return err
	}
	return nil
}

// ValidateBot additionally requires a notification channel.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Feishu.Webhook == "" && c.Telegram.BotToken == "" {
		return fmt.Errorf("feishu.webhook or telegram.bot_token is required")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required with telegram.bot_token")
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.DataSource.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.DataSource.CacheTTLMinutes) * time.Minute
}

// StaticPools converts the configured pool overrides.
func (c *Config) StaticPools() map[string][]model.Fund {
	out := make(map[string][]model.Fund, len(c.Pools.Static))
	for name, entries := range c.Pools.Static {
		funds := make([]model.Fund, 0, len(entries))
		for _, e := range entries {
			if e.Code == "" {
				continue
			}
			funds = append(funds, model.Fund{Code: e.Code, Name: e.Name})
		}
		out[name] = funds
	}
	return out
}

// BacktestConfig builds the simulator configuration from the defaults plus
// the backtest section.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	bc := backtest.DefaultConfig()
	bc.InitialCapital = c.Backtest.InitialCapital
	bc.MonthlyDeposit = c.Backtest.MonthlyDeposit
	bc.MaxHoldings = c.Backtest.MaxHoldings

	sizing, err := strategy.ParseSizingModel(c.Backtest.Sizing)
	if err != nil {
		return bc, fmt.Errorf("backtest.sizing: %w", err)
	}
	bc.Sizing = sizing

	switch rs := model.RuleSet(c.Backtest.RuleSet); rs {
	case model.RuleSetRich, model.RuleSetLean:
		bc.RuleSet = rs
	default:
		return bc, fmt.Errorf("backtest.rule_set: unknown rule set %q", c.Backtest.RuleSet)
	}

	if bc.Start, err = parseDate(c.Backtest.Start); err != nil {
		return bc, fmt.Errorf("backtest.start: %w", err)
	}
	if bc.End, err = parseDate(c.Backtest.End); err != nil {
		return bc, fmt.Errorf("backtest.end: %w", err)
	}
	if err := bc.Validate(); err != nil {
		return bc, err
	}
	return bc, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(model.DateLayout, s)
}
