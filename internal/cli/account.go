package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"WaveSentinel/internal/account"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/notifier"
)

func newAccountCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the live fund account",
	}
	cmd.AddCommand(newAccountShowCmd(get))
	cmd.AddCommand(newAccountBuyCmd(get))
	cmd.AddCommand(newAccountSellCmd(get))
	cmd.AddCommand(newAccountCashCmd(get, "deposit"))
	cmd.AddCommand(newAccountCashCmd(get, "withdraw"))
	cmd.AddCommand(newAccountSettleCmd(get))
	cmd.AddCommand(newAccountHistoryCmd(get))
	cmd.AddCommand(newAccountResetCmd(get))
	return cmd
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

func newAccountShowCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Value holdings at current prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			snap, err := a.Account.Snapshot(ctx)
			if err != nil {
				return err
			}
			printTitle(a.Out, fmt.Sprintf("Account %s", a.Config.Account.ID))
			printBox(a.Out, fmt.Sprintf("total %s   cash %s   pending %s   market %s",
				notifier.Cents(snap.Total), notifier.Cents(snap.Cash), notifier.Cents(snap.Pending), notifier.Cents(snap.MarketValue)))

			rows := make([][]string, len(snap.Holdings))
			for i, h := range snap.Holdings {
				rows[i] = []string{h.Code, h.Name, fmt.Sprintf("%.2f", h.Shares), fmt.Sprintf("%.4f", h.Cost),
					fmt.Sprintf("%.4f", h.Price), notifier.Cents(h.Value), signed(h.PnLPct), fmt.Sprintf("%d", h.Days)}
			}
			fmt.Fprintln(a.Out, table([]string{"CODE", "NAME", "SHARES", "COST", "PRICE", "VALUE", "PNL", "DAYS"}, rows))

			if len(snap.Orders) > 0 {
				orders := make([][]string, len(snap.Orders))
				for i, o := range snap.Orders {
					orders[i] = []string{o.Code, o.Name, notifier.Cents(o.Amount), o.Date, o.SettlementDate}
				}
				fmt.Fprintln(a.Out, table([]string{"PENDING", "NAME", "AMOUNT", "ORDERED", "SETTLES"}, orders))
			}

			dead, err := a.Account.DeadMoney(ctx)
			if err != nil {
				return err
			}
			for _, d := range dead {
				fmt.Fprintln(a.Out, warnStyle.Render(fmt.Sprintf("dead money: %s (%s) held %d days at %+.2f%%", d.Name, d.Code, d.Days, d.PnLPct*100)))
			}
			return nil
		},
	}
}

func newAccountBuyCmd(get func() *App) *cobra.Command {
	var o account.BuyOrder
	cmd := &cobra.Command{
		Use:   "buy CODE AMOUNT",
		Short: "Place a subscription order settled at the next NAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			o.Code, o.Amount = args[0], amount
			if o.Name == "" {
				o.Name = a.fundName(ctx, o.Code)
			}
			if o.Price <= 0 {
				snap, err := a.collector().Collect(ctx, fundOf(o.Code, o.Name), true)
				if err != nil {
					return err
				}
				o.Price = snap.Price
			}
			settle, err := a.Account.Buy(ctx, o)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s %s @%.4f, settles %s\n", upStyle.Render("BUY"), o.Name,
				notifier.Cents(o.Amount), o.Price, settle.Format(model.DateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&o.Name, "name", "", "Fund name (looked up when empty)")
	cmd.Flags().Float64Var(&o.Price, "price", 0, "Order price (current price when 0)")
	cmd.Flags().Float64Var(&o.StopLoss, "stop", 0, "Stop-loss price")
	cmd.Flags().Float64Var(&o.Target, "target", 0, "Target price")
	cmd.Flags().StringVar(&o.Reason, "reason", "手动买入", "Reason kept in history")
	return cmd
}

func newAccountSellCmd(get func() *App) *cobra.Command {
	var o account.SellOrder
	cmd := &cobra.Command{
		Use:   "sell CODE",
		Short: "Redeem a holding oldest lot first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			o.Code = args[0]
			if o.Price <= 0 {
				snap, err := a.collector().Collect(ctx, fundOf(o.Code, o.Code), true)
				if err != nil {
					return err
				}
				o.Price = snap.Price
			}
			report, err := a.Account.Sell(ctx, o)
			var pe *account.PenaltyError
			if errors.As(err, &pe) {
				fmt.Fprintln(a.Out, warnStyle.Render(pe.Error()))
				return fmt.Errorf("sale not executed; repeat with --force to pay ¥%.2f", pe.Fee)
			}
			if err != nil {
				return err
			}
			title, body := report.Message()
			printBox(a.Out, title+"\n"+body)
			return nil
		},
	}
	cmd.Flags().Float64Var(&o.Price, "price", 0, "Sale price (current price when 0)")
	cmd.Flags().Float64Var(&o.Shares, "shares", 0, "Shares to sell (all when 0)")
	cmd.Flags().StringVar(&o.Reason, "reason", "手动卖出", "Reason kept in history")
	cmd.Flags().BoolVar(&o.Force, "force", false, "Accept the short-holding penalty")
	return cmd
}

func newAccountCashCmd(get func() *App, kind string) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   kind + " AMOUNT",
		Short: "Move cash " + map[string]string{"deposit": "into", "withdraw": "out of"}[kind] + " the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			if kind == "deposit" {
				err = a.Account.Deposit(cmd.Context(), amount, note)
			} else {
				err = a.Account.Withdraw(cmd.Context(), amount, note)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "%s %s\n", kind, notifier.Cents(amount))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Note kept in history")
	return cmd
}

func newAccountSettleCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Confirm matured orders at their actual NAV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			n, err := a.Account.Settle(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "settled %d orders\n", n)
			return nil
		},
	}
}

func newAccountHistoryCmd(get func() *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest account history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			doc, err := a.Account.Document(cmd.Context())
			if err != nil {
				return err
			}
			h := doc.History
			if limit > 0 && len(h) > limit {
				h = h[len(h)-limit:]
			}
			rows := make([][]string, len(h))
			for i, e := range h {
				pnl := ""
				if e.Action == model.HistorySell {
					pnl = notifier.Cents(e.PnL)
				}
				rows[i] = []string{e.Date, e.Action, e.Code, e.Name, notifier.Cents(e.Amount), pnl, e.Reason}
			}
			fmt.Fprintln(a.Out, table([]string{"DATE", "ACTION", "CODE", "NAME", "AMOUNT", "PNL", "REASON"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries (all when 0)")
	return cmd
}

func newAccountResetCmd(get func() *App) *cobra.Command {
	var (
		capital float64
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard holdings and history and start over",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if !yes {
				return errors.New("reset discards the whole account; confirm with --yes")
			}
			if capital <= 0 {
				capital = a.Config.Account.InitialCapital
			}
			if err := a.Account.Reset(cmd.Context(), capital); err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "account reset with %s\n", notifier.Cents(capital))
			return nil
		},
	}
	cmd.Flags().Float64Var(&capital, "capital", 0, "Starting cash (config default when 0)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
