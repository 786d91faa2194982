package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"WaveSentinel/internal/config"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/notifier"
	"WaveSentinel/internal/radar"
	"WaveSentinel/internal/recorder"
	"WaveSentinel/internal/strategy"
	"WaveSentinel/internal/trace"
)

// NewRootCmd creates the wavectl command tree. Subcommands share one App,
// built before they run and closed after.
func NewRootCmd() *cobra.Command {
	var (
		cfgPath string
		app     *App
	)
	get := func() *App { return app }

	rootCmd := &cobra.Command{
		Use:           "wavectl",
		Short:         "WaveSentinel - fund wave signals, radar, account and backtests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			if err := trace.Init(cfg.Trace.Enabled, cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			app, err = NewApp(cfg)
			if err != nil {
				return err
			}
			app.Out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Close()
			}
			_ = trace.Shutdown(context.Background())
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "configs/config.yaml", "Configuration file path")

	rootCmd.AddCommand(newSignalCmd(get))
	rootCmd.AddCommand(newScanCmd(get))
	rootCmd.AddCommand(newPatrolCmd(get))
	rootCmd.AddCommand(newRegimeCmd(get))
	rootCmd.AddCommand(newSectorsCmd(get))
	rootCmd.AddCommand(newBacktestCmd(get))
	rootCmd.AddCommand(newAccountCmd(get))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "wavectl v1.0.0")
		},
	}
}

func newSignalCmd(get func() *App) *cobra.Command {
	var (
		rules  string
		pivots bool
	)
	cmd := &cobra.Command{
		Use:   "signal CODE",
		Short: "Classify one fund using today's estimate as the last bar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			code := args[0]

			snap, err := a.collector().Collect(ctx, fundOf(code, a.fundName(ctx, code)), true)
			if err != nil {
				return err
			}
			rs := model.RuleSet(rules)
			if rs != model.RuleSetRich && rs != model.RuleSetLean {
				return fmt.Errorf("unknown rule set %q", rules)
			}
			c := strategy.RuleClassifier{RuleSet: rs, WithPivots: pivots}
			d := c.Classify(snap.Frame)

			printTitle(a.Out, fmt.Sprintf("%s (%s)", snap.Fund.Name, snap.Fund.Code))
			var b strings.Builder
			fmt.Fprintf(&b, "price     %.4f", snap.Price)
			if snap.UsedEstimate {
				b.WriteString(dimStyle.Render("  (estimate)"))
			}
			fmt.Fprintf(&b, "\nstatus    %s  score %d  [%s rules]", statusText(d.Status), d.Score, d.RuleSet)
			fmt.Fprintf(&b, "\npattern   %s", d.Pattern)
			fmt.Fprintf(&b, "\nreason    %s", d.Description)
			if d.StopLoss > 0 || d.Target > 0 {
				fmt.Fprintf(&b, "\nstop      %.4f  target %.4f", d.StopLoss, d.Target)
			}
			fmt.Fprintf(&b, "\nATR       %.4f", d.ATR)
			if d.Swing != nil {
				fmt.Fprintf(&b, "\nswing     %s %.4f on %s", d.Swing.Kind, d.Swing.Value, d.Swing.Date.Format(model.DateLayout))
			}
			printBox(a.Out, b.String())

			return a.Recorder.RecordSignal(&recorder.SignalEvent{
				At: a.Clock.Now(), Source: recorder.SourceCLI, Fund: snap.Fund, Price: snap.Price, Decision: d,
			})
		},
	}
	cmd.Flags().StringVar(&rules, "rules", string(model.RuleSetRich), "Rule set: rich or lean")
	cmd.Flags().BoolVar(&pivots, "pivots", true, "Extract ZigZag swings")
	return cmd
}

func scanOptions(cfg *config.Config) radar.ScanOptions {
	return radar.ScanOptions{
		MinScore:        cfg.Radar.MinScore,
		Limit:           cfg.Radar.Limit,
		SuggestFraction: cfg.Radar.SuggestFraction,
		Workers:         cfg.Radar.Workers,
	}
}

func newScanCmd(get func() *App) *cobra.Command {
	var (
		pool     string
		minScore int
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the market radar over a fund pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			funds, err := a.Pools.ListPool(ctx, pool)
			if err != nil {
				return err
			}
			doc, err := a.Account.Document(ctx)
			if err != nil {
				return err
			}
			opts := scanOptions(a.Config)
			if minScore > 0 {
				opts.MinScore = minScore
			}
			if limit > 0 {
				opts.Limit = limit
			}
			scanner := radar.NewScanner(a.collector(), nil)
			opps := scanner.Scan(ctx, funds, radar.TotalAssets(doc), opts)

			printTitle(a.Out, fmt.Sprintf("Radar: %d/%d funds (%s)", len(opps), len(funds), pool))
			rows := make([][]string, len(opps))
			for i, o := range opps {
				rows[i] = []string{o.Fund.Code, o.Fund.Name, fmt.Sprintf("%d", o.Decision.Score),
					fmt.Sprintf("%.4f", o.Price), notifier.Yuan(o.SuggestedAmount), o.Decision.Description}
				if err := a.Recorder.RecordSignal(&recorder.SignalEvent{
					At: a.Clock.Now(), Source: recorder.SourceRadar, Fund: o.Fund, Price: o.Price, Decision: o.Decision,
				}); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.Out, table([]string{"CODE", "NAME", "SCORE", "PRICE", "SUGGEST", "REASON"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "radar", "Pool selector: default, otf, unbiased, sector, market, radar or a configured pool")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum score (config default when 0)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (config default when 0)")
	return cmd
}

func newPatrolCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "patrol",
		Short: "Check holdings and pending orders for exit signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			doc, err := a.Account.Document(ctx)
			if err != nil {
				return err
			}
			r := radar.NewScanner(a.collector(), nil).Patrol(ctx, doc, a.Config.Radar.Workers)
			printTitle(a.Out, fmt.Sprintf("Patrol: %d checked, %d alerts", r.Checked, len(r.Alerts)))
			rows := make([][]string, len(r.Alerts))
			for i, al := range r.Alerts {
				rows[i] = []string{string(al.Kind), al.Fund.Code, al.Fund.Name, fmt.Sprintf("%.4f", al.Price), al.Reason}
			}
			fmt.Fprintln(a.Out, table([]string{"KIND", "CODE", "NAME", "PRICE", "REASON"}, rows))
			for _, f := range r.Failed {
				fmt.Fprintln(a.Out, warnStyle.Render("no data: "+f.Code))
			}
			return nil
		},
	}
}

func newRegimeCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "regime",
		Short: "Show the market temperature across style indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			r := radar.Regime(ctx, a.Fetcher)
			printTitle(a.Out, fmt.Sprintf("Market regime: %s (%.0f%%)", r.Label, r.Score*100))
			rows := make([][]string, len(r.Indices))
			for i, idx := range r.Indices {
				state := dimStyle.Render("unknown")
				if idx.Known {
					state = downStyle.Render("below EMA89")
					if idx.Bullish {
						state = upStyle.Render("above EMA89")
					}
				}
				rows[i] = []string{idx.Fund.Code, idx.Fund.Name, state}
			}
			fmt.Fprintln(a.Out, table([]string{"CODE", "INDEX", "TREND"}, rows))
			switch radar.IndexTrend(ctx, a.Fetcher) {
			case 1:
				fmt.Fprintln(a.Out, "CSI 300 above EMA144")
			case -1:
				fmt.Fprintln(a.Out, "CSI 300 below EMA144")
			}
			return nil
		},
	}
}

func newSectorsCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sectors",
		Short: "Rank sector funds by 20-day momentum",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			rs := radar.SectorRankings(cmd.Context(), a.Fetcher)
			printTitle(a.Out, "Sector rotation")
			rows := make([][]string, len(rs))
			for i, s := range rs {
				m := dimStyle.Render("--")
				if s.Known {
					m = signed(s.Momentum)
				}
				rows[i] = []string{fmt.Sprintf("%d", i+1), s.Sector.Code, s.Sector.Label, m}
			}
			fmt.Fprintln(a.Out, table([]string{"#", "CODE", "SECTOR", "MOMENTUM"}, rows))
			return nil
		},
	}
}
