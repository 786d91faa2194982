package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/robfig/cron/v3"

	"WaveSentinel/internal/account"
	"WaveSentinel/internal/clock"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/notifier"
	"WaveSentinel/internal/radar"
	"WaveSentinel/internal/recorder"
)

// CardSender delivers rich report cards and job failure notices.
type CardSender interface {
	SendCard(ctx context.Context, c notifier.Card) bool
	Failure(ctx context.Context, job string, err error) bool
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  *radar.Scanner
	Pools    collector.PoolProvider
	Account  *account.Manager
	Fetcher  collector.Fetcher
	Notifier notifier.Notifier
	// Cards receives the daily report; nil sends it through Notifier.
	Cards     CardSender
	Recorder  recorder.Recorder
	Clock     clock.Clock
	RadarPool string
	ScanOpts  radar.ScanOptions
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler with a seconds-aware cron.
func NewScheduler(ctx context.Context, scanner *radar.Scanner, pools collector.PoolProvider, am *account.Manager, n notifier.Notifier, rec recorder.Recorder) *Scheduler {
	if n == nil {
		n = notifier.Noop{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Scanner:   scanner,
		Pools:     pools,
		Account:   am,
		Fetcher:   scanner.Collector.Fetcher,
		Notifier:  n,
		Recorder:  rec,
		Clock:     scanner.Collector.Clock,
		RadarPool: collector.PoolRadar,
		ScanOpts:  radar.DefaultScanOptions(),
		Ctx:       ctx,
	}
}

// RegisterAll registers the daily patrol, the settlement sweep and the
// market regime report.
func (s *Scheduler) RegisterAll(patrolCron, settleCron, regimeCron string) error {
	if _, err := s.Cron.AddFunc(patrolCron, s.dailyTask); err != nil {
		return fmt.Errorf("register patrol task: %w", err)
	}
	if _, err := s.Cron.AddFunc(settleCron, s.settleTask); err != nil {
		return fmt.Errorf("register settle task: %w", err)
	}
	if _, err := s.Cron.AddFunc(regimeCron, s.regimeTask); err != nil {
		return fmt.Errorf("register regime task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDailyNow executes the patrol and radar immediately (RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	s.dailyTask()
}

// invalidator is implemented by caching fetchers.
type invalidator interface{ Invalidate() }

func (s *Scheduler) dailyTask() {
	log.Println("[INFO] running daily patrol")
	if inv, ok := s.Fetcher.(invalidator); ok {
		inv.Invalidate()
	}
	card, err := s.DailyReport(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] daily patrol: %v", err)
		s.fail("波浪策略巡检", err)
		return
	}
	s.sendCard(card)
}

// DailyReport patrols the account, scans the radar pool and builds the card.
func (s *Scheduler) DailyReport(ctx context.Context) (notifier.Card, error) {
	doc, err := s.Account.Document(ctx)
	if err != nil {
		return notifier.Card{}, fmt.Errorf("load account: %w", err)
	}

	patrol := s.Scanner.Patrol(ctx, doc, s.ScanOpts.Workers)
	for _, a := range patrol.Alerts {
		s.record(recorder.SourcePatrol, a.Fund, a.Price, a.Decision, a.Reason)
	}

	funds, err := s.Pools.ListPool(ctx, s.RadarPool)
	if err != nil {
		return notifier.Card{}, fmt.Errorf("list pool %s: %w", s.RadarPool, err)
	}
	opps := s.Scanner.Scan(ctx, funds, radar.TotalAssets(doc), s.ScanOpts)
	for _, o := range opps {
		s.record(recorder.SourceRadar, o.Fund, o.Price, o.Decision, "")
	}
	log.Printf("[INFO] patrol: %d checked, %d alerts; radar: %d/%d opportunities",
		patrol.Checked, len(patrol.Alerts), len(opps), len(funds))

	return notifier.DailyCard(doc, patrol, opps, len(funds), s.Clock.Now()), nil
}

func (s *Scheduler) settleTask() {
	log.Println("[INFO] running settlement sweep")
	n, err := s.Account.Settle(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] settle: %v", err)
		s.fail("申购确认", err)
		return
	}
	if n > 0 {
		s.Notifier.Send(s.Ctx, "✅ 申购确认", fmt.Sprintf("已按实际净值确认 %d 笔在途申购。", n))
	}
}

func (s *Scheduler) regimeTask() {
	log.Println("[INFO] running regime report")
	s.Notifier.Send(s.Ctx, "🌡️ 市场温度周报", s.regimeText(s.Ctx))
}

func (s *Scheduler) regimeText(ctx context.Context) string {
	report := radar.Regime(ctx, s.Fetcher)
	sectors := radar.SectorRankings(ctx, s.Fetcher)
	return notifier.FormatRegime(report) + "\n\n" + notifier.FormatSectors(sectors)
}

const helpText = "可用命令:\n• /report 立即巡检\n• /account 账户概览\n• /scan 选股雷达\n• /regime 市场温度\n• /sectors 行业轮动\n• /settle 确认在途申购"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch strings.TrimSpace(command) {
	case "立即巡检", "/report":
		go s.dailyTask()
		return "⏳ 巡检已开始，完成后推送报告。"
	case "账户概览", "/account":
		snap, err := s.Account.Snapshot(ctx)
		if err != nil {
			return fmt.Sprintf("❌ 读取账户失败: %v", err)
		}
		text := notifier.FormatAccount(snap)
		if dead, err := s.Account.DeadMoney(ctx); err == nil && len(dead) > 0 {
			text += "\n\n" + notifier.FormatDeadMoney(dead)
		}
		return text
	case "选股雷达", "/scan":
		doc, err := s.Account.Document(ctx)
		if err != nil {
			return fmt.Sprintf("❌ 读取账户失败: %v", err)
		}
		funds, err := s.Pools.ListPool(ctx, s.RadarPool)
		if err != nil {
			return fmt.Sprintf("❌ 获取基金池失败: %v", err)
		}
		return notifier.FormatRadar(s.Scanner.Scan(ctx, funds, radar.TotalAssets(doc), s.ScanOpts))
	case "市场温度", "/regime":
		return notifier.FormatRegime(radar.Regime(ctx, s.Fetcher))
	case "行业轮动", "/sectors":
		return notifier.FormatSectors(radar.SectorRankings(ctx, s.Fetcher))
	case "确认申购", "/settle":
		n, err := s.Account.Settle(ctx)
		if err != nil {
			return fmt.Sprintf("❌ 确认失败: %v", err)
		}
		return fmt.Sprintf("✅ 已确认 %d 笔在途申购。", n)
	default:
		return helpText
	}
}

func (s *Scheduler) record(source string, fund model.Fund, price float64, d model.SignalDecision, note string) {
	if err := s.Recorder.RecordSignal(&recorder.SignalEvent{
		At:       s.Clock.Now(),
		Source:   source,
		Fund:     fund,
		Price:    price,
		Decision: d,
		Note:     note,
	}); err != nil {
		log.Printf("[ERROR] record signal %s: %v", fund.Code, err)
	}
}

func (s *Scheduler) sendCard(c notifier.Card) {
	if s.Cards != nil {
		s.Cards.SendCard(s.Ctx, c)
		return
	}
	body := c.Body
	if c.Note != "" {
		body += "\n\n" + c.Note
	}
	s.Notifier.Send(s.Ctx, c.Title, body)
}

func (s *Scheduler) fail(job string, err error) {
	if s.Cards != nil {
		s.Cards.Failure(s.Ctx, job, err)
		return
	}
	s.Notifier.Send(s.Ctx, "❌ "+job, fmt.Sprintf("巡检脚本运行故障: %v", err))
}
