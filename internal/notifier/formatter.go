package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"WaveSentinel/internal/account"
	"WaveSentinel/internal/backtest"
	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/radar"
)

// Yuan formats whole yuan with thousands separators.
func Yuan(v float64) string { return "¥" + humanize.FormatFloat("#,###.", v) }

// Cents formats yuan with two decimals and thousands separators.
func Cents(v float64) string { return "¥" + humanize.FormatFloat("#,###.##", v) }

// FormatPatrol renders the sell-side section of the daily report.
func FormatPatrol(r radar.PatrolReport) string {
	if len(r.Alerts) == 0 {
		return "✅ **风险巡检**: 当前持仓及模拟交易台表现正常，未发现 Sell 卖出信号。"
	}
	var b strings.Builder
	b.WriteString("🔥 **持仓/模拟风控预警**")
	for _, a := range r.Alerts {
		fmt.Fprintf(&b, "\n🚨 **[%s] 卖出建议**: %s (%s)\n   • 现价:%.4f | 原因: %s", a.Kind, a.Fund.Name, a.Fund.Code, a.Price, a.Reason)
	}
	return b.String()
}

// FormatRadar renders the buy-side section of the daily report.
func FormatRadar(opps []radar.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔭 **选股雷达 (强动能 Top %d)**\n", len(opps))
	if len(opps) == 0 {
		b.WriteString("⚪ 暂无符合突破条件的强信号。")
		return b.String()
	}
	lines := make([]string, len(opps))
	for i, o := range opps {
		lines[i] = fmt.Sprintf("✅ **%s** (%s)\n   • 评分: %d | 建议单位: %s\n   • 原因: %s",
			o.Fund.Name, o.Fund.Code, o.Decision.Score, Yuan(o.SuggestedAmount), o.Decision.Description)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// DailyCard assembles the patrol and radar sections into one card. It is red
// whenever the patrol raised an alert.
func DailyCard(doc *model.AccountDocument, patrol radar.PatrolReport, opps []radar.Opportunity, scanned int, now time.Time) Card {
	template := TemplateBlue
	if len(patrol.Alerts) > 0 {
		template = TemplateRed
	}
	return Card{
		Title:    fmt.Sprintf("🌊 波浪策略巡检 (%s)", now.In(clock.Beijing).Format("15:04")),
		Body:     FormatPatrol(patrol) + "\n\n---\n\n" + FormatRadar(opps),
		Template: template,
		Divider:  true,
		Note: fmt.Sprintf("账户现金: %s | 实盘持仓: %d只 | 模拟交易台: %d只 | 本次扫描: Top %d 品种",
			Yuan(doc.Capital), len(doc.Holdings), len(doc.PendingOrders), scanned),
	}
}

func FormatRegime(r radar.RegimeReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌡️ **市场温度**: %s (%.0f%%)\n", r.Label, r.Score*100)
	for _, idx := range r.Indices {
		mark := "⚪"
		if idx.Known {
			mark = "🟢"
			if idx.Bullish {
				mark = "🔴"
			}
		}
		fmt.Fprintf(&b, "%s %s\n", mark, idx.Fund.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatSectors(rs []radar.SectorMomentum) string {
	var b strings.Builder
	b.WriteString("🧭 **行业轮动 (20日动能)**")
	for i, s := range rs {
		if !s.Known {
			fmt.Fprintf(&b, "\n%d. %s  --", i+1, s.Sector.Label)
			continue
		}
		fmt.Fprintf(&b, "\n%d. %s  %+.2f%%", i+1, s.Sector.Label, s.Momentum*100)
	}
	return b.String()
}

// FormatBacktest summarises a simulation run.
func FormatBacktest(title string, s backtest.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 **%s**\n", title)
	fmt.Fprintf(&b, "期末权益: %s (本金 %s)\n", Cents(s.FinalEquity), Cents(s.Principal))
	fmt.Fprintf(&b, "总收益: %+.2f%% | 年化: %+.2f%%\n", s.TotalReturn*100, s.CAGR*100)
	fmt.Fprintf(&b, "最大回撤: %.2f%% | 夏普: %.2f\n", s.MaxDrawdown*100, s.Sharpe)
	fmt.Fprintf(&b, "基准: %+.2f%% | 超额: %+.2f%%\n", s.BenchmarkReturn*100, s.Alpha*100)
	fmt.Fprintf(&b, "交易: 买入 %d / 卖出 %d | 胜率 %.1f%% | 盈亏比 %.2f", s.Buys, s.Exits, s.WinRate*100, s.PayoffRatio)
	return b.String()
}

// FormatAccount lists cash and holdings at current prices.
func FormatAccount(s *account.Snapshot) string {
	var b strings.Builder
	b.WriteString("💼 **账户概览**\n")
	fmt.Fprintf(&b, "总资产: %s | 现金: %s | 在途: %s\n", Cents(s.Total), Cents(s.Cash), Cents(s.Pending))
	if len(s.Holdings) == 0 {
		b.WriteString("暂无持仓")
		return b.String()
	}
	for _, h := range s.Holdings {
		fmt.Fprintf(&b, "• %s (%s) %.2f份 @%.4f → %.4f  %+.2f%%  持有%d天\n",
			h.Name, h.Code, h.Shares, h.Cost, h.Price, h.PnLPct*100, h.Days)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDeadMoney lists stagnant positions.
func FormatDeadMoney(dead []account.DeadPosition) string {
	if len(dead) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💤 **僵尸持仓预警** (> %d天, 收益 ±%.0f%% 内)", account.DeadMoneyDays, account.DeadMoneyBand*100)
	for _, d := range dead {
		fmt.Fprintf(&b, "\n• %s (%s) 持有%d天 收益 %+.2f%%", d.Name, d.Code, d.Days, d.PnLPct*100)
	}
	return b.String()
}
