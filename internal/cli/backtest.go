package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"WaveSentinel/internal/backtest"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/notifier"
	"WaveSentinel/internal/strategy"
)

type backtestFlags struct {
	pool    string
	start   string
	end     string
	sizing  string
	deposit float64
	capital float64
	limit   int
}

func (f *backtestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pool, "pool", "", "Fund pool (config default when empty)")
	cmd.Flags().StringVar(&f.start, "start", "", "First simulated day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "Last simulated day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.sizing, "sizing", "", "Sizing model: fixed, atr, kelly or equal")
	cmd.Flags().Float64Var(&f.deposit, "deposit", -1, "Monthly deposit (config default when negative)")
	cmd.Flags().Float64Var(&f.capital, "capital", 0, "Initial capital (config default when 0)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum funds to load (config default when 0)")
}

// apply overlays the flags on the configured simulator settings.
func (f *backtestFlags) apply(a *App) (backtest.Config, string, int, error) {
	cfg, err := a.Config.BacktestConfig()
	if err != nil {
		return cfg, "", 0, err
	}
	pool := a.Config.Backtest.Pool
	if f.pool != "" {
		pool = f.pool
	}
	limit := a.Config.Backtest.FundLimit
	if f.limit > 0 {
		limit = f.limit
	}
	if f.start != "" {
		if cfg.Start, err = time.Parse(model.DateLayout, f.start); err != nil {
			return cfg, "", 0, fmt.Errorf("--start: %w", err)
		}
	}
	if f.end != "" {
		if cfg.End, err = time.Parse(model.DateLayout, f.end); err != nil {
			return cfg, "", 0, fmt.Errorf("--end: %w", err)
		}
	}
	if f.sizing != "" {
		if cfg.Sizing, err = strategy.ParseSizingModel(f.sizing); err != nil {
			return cfg, "", 0, err
		}
	}
	if f.deposit >= 0 {
		cfg.MonthlyDeposit = f.deposit
	}
	if f.capital > 0 {
		cfg.InitialCapital = f.capital
	}
	return cfg, pool, limit, cfg.Validate()
}

func newBacktestCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate the strategy on historical NAVs",
	}
	cmd.AddCommand(newBacktestRunCmd(get))
	cmd.AddCommand(newBacktestSingleCmd(get))
	cmd.AddCommand(newBacktestSweepCmd(get))
	cmd.AddCommand(newBacktestHistoryCmd(get))
	return cmd
}

func newBacktestRunCmd(get func() *App) *cobra.Command {
	var (
		flags  backtestFlags
		trades int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the portfolio simulation over a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			cfg, pool, limit, err := flags.apply(a)
			if err != nil {
				return err
			}
			instruments, bench, err := a.loadInstruments(cmd.Context(), pool, limit)
			if err != nil {
				return err
			}
			cfg.Benchmark = bench
			res, err := backtest.Run(instruments, cfg)
			if err != nil {
				return err
			}
			printBox(a.Out, notifier.FormatBacktest(fmt.Sprintf("组合回测 %s (%d 只)", pool, len(instruments)), res.Summary))
			printTrades(a, res.Trades, trades)
			a.recordRun("portfolio", pool, cfg, res)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&trades, "trades", 20, "Show the last N trades")
	return cmd
}

func newBacktestSingleCmd(get func() *App) *cobra.Command {
	var flags backtestFlags
	cmd := &cobra.Command{
		Use:   "single CODE",
		Short: "Trade one fund in isolation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			cfg, _, _, err := flags.apply(a)
			if err != nil {
				return err
			}
			code := args[0]
			frame, err := a.loadFrame(ctx, code)
			if err != nil {
				return err
			}
			inst := backtest.Instrument{Code: code, Name: a.fundName(ctx, code), Frame: frame}
			res, err := backtest.RunSingle(inst, cfg)
			if err != nil {
				return err
			}
			printBox(a.Out, notifier.FormatBacktest(fmt.Sprintf("单品回测 %s (%s)", inst.Name, code), res.Summary))
			printTrades(a, res.Trades, len(res.Trades))
			a.recordRun("single", code, cfg, res)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newBacktestSweepCmd(get func() *App) *cobra.Command {
	var (
		flags backtestFlags
		step  int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Repeat the portfolio simulation from staggered start dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			cfg, pool, limit, err := flags.apply(a)
			if err != nil {
				return err
			}
			instruments, bench, err := a.loadInstruments(cmd.Context(), pool, limit)
			if err != nil {
				return err
			}
			cfg.Benchmark = bench
			if cfg.Start.IsZero() || cfg.End.IsZero() {
				cfg.Start, cfg.End = frameSpan(instruments)
			}
			opts := backtest.DefaultSweepOptions()
			opts.StepDays = step
			points, err := backtest.Sweep(cmd.Context(), instruments, cfg, opts)
			if err != nil {
				return err
			}
			printTitle(a.Out, fmt.Sprintf("Start-date sweep: %d runs", len(points)))
			rows := make([][]string, len(points))
			for i, p := range points {
				if p.Err != nil {
					rows[i] = []string{p.Start.Format(model.DateLayout), "-", "-", warnStyle.Render(p.Err.Error())}
					continue
				}
				rows[i] = []string{p.Start.Format(model.DateLayout), signed(p.TotalReturn), signed(p.MaxDrawdown),
					fmt.Sprintf("%.1f%%", p.WinRate*100)}
			}
			fmt.Fprintln(a.Out, table([]string{"START", "RETURN", "MAX DD", "WIN RATE"}, rows))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&step, "step", 15, "Days between start dates")
	return cmd
}

func newBacktestHistoryCmd(get func() *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded backtest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			runs, err := a.Recorder.RecentRuns(limit)
			if err != nil {
				return err
			}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.At.Format("2006-01-02 15:04"), r.ID[:min(8, len(r.ID))], r.Kind, r.Pool,
					signed(r.TotalReturn), signed(r.MaxDrawdown), fmt.Sprintf("%.2f", r.Sharpe), fmt.Sprintf("%d", r.Trades)}
			}
			fmt.Fprintln(a.Out, table([]string{"AT", "ID", "KIND", "POOL", "RETURN", "MAX DD", "SHARPE", "TRADES"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs")
	return cmd
}

func printTrades(a *App, trades []model.Trade, n int) {
	if n <= 0 || len(trades) == 0 {
		return
	}
	if n > len(trades) {
		n = len(trades)
	}
	tail := trades[len(trades)-n:]
	rows := make([][]string, len(tail))
	for i, t := range tail {
		pnl := ""
		if t.IsExit() {
			pnl = notifier.Cents(t.PnL)
		}
		rows[i] = []string{t.Date.Format(model.DateLayout), string(t.Action), t.Code, t.Name,
			fmt.Sprintf("%.4f", t.Price), notifier.Cents(t.Amount), pnl, t.Reason}
	}
	fmt.Fprintln(a.Out, table([]string{"DATE", "ACTION", "CODE", "NAME", "PRICE", "AMOUNT", "PNL", "REASON"}, rows))
}

// frameSpan is the widest date range covered by the instruments.
func frameSpan(instruments []backtest.Instrument) (time.Time, time.Time) {
	var first, last time.Time
	for _, inst := range instruments {
		d := inst.Frame.Dates
		if len(d) == 0 {
			continue
		}
		if first.IsZero() || d[0].Before(first) {
			first = d[0]
		}
		if d[len(d)-1].After(last) {
			last = d[len(d)-1]
		}
	}
	return first, last
}
