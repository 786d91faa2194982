package radar

import (
	"context"
	"fmt"
	"log"

	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/trace"
)

// PositionKind tells a settled holding from an order still in transit.
type PositionKind string

const (
	KindHolding PositionKind = "实盘持仓"
	KindPending PositionKind = "模拟交易"
)

// Alert recommends selling a position.
type Alert struct {
	Kind     PositionKind
	Fund     model.Fund
	Price    float64
	Reason   string
	StopHit  bool
	Decision model.SignalDecision
}

// PatrolReport is the outcome of one risk patrol.
type PatrolReport struct {
	Checked int
	Alerts  []Alert
	Failed  []model.Fund
}

type watched struct {
	kind     PositionKind
	fund     model.Fund
	stopLoss float64
}

// Patrol checks every holding and pending order for a Sell decision or a
// breached stop loss.
func (s *Scanner) Patrol(ctx context.Context, doc *model.AccountDocument, workers int) PatrolReport {
	ctx, span := trace.StartSpan(ctx, "radar.Patrol")
	defer span.End()

	var items []watched
	for _, h := range doc.Holdings {
		items = append(items, watched{KindHolding, model.Fund{Code: h.Code, Name: h.Name}, h.StopLoss})
	}
	for _, o := range doc.PendingOrders {
		items = append(items, watched{KindPending, model.Fund{Code: o.Code, Name: o.Name}, o.StopLoss})
	}
	funds := make([]model.Fund, len(items))
	for i, it := range items {
		funds[i] = it.fund
	}

	report := PatrolReport{Checked: len(items)}
	for i, e := range s.evaluate(ctx, funds, workers) {
		it := items[i]
		if e.err != nil {
			log.Printf("[WARN] patrol %s: %v", it.fund.Code, e.err)
			report.Failed = append(report.Failed, it.fund)
			continue
		}
		price := patrolPrice(e.snap)
		waveSell := e.decision.IsSell()
		stopHit := it.stopLoss > 0 && price < it.stopLoss
		if !waveSell && !stopHit {
			continue
		}
		reason := e.decision.Description
		if !waveSell {
			reason = fmt.Sprintf("跌破止损位(%.4f)", it.stopLoss)
		}
		report.Alerts = append(report.Alerts, Alert{
			Kind:     it.kind,
			Fund:     it.fund,
			Price:    price,
			Reason:   reason,
			StopHit:  stopHit,
			Decision: e.decision,
		})
	}
	return report
}

// patrolPrice prefers the live estimate over the last official NAV.
func patrolPrice(snap *collector.Snapshot) float64 {
	if snap.Estimate != nil && snap.Estimate.Price > 0 {
		return snap.Estimate.Price
	}
	if last, ok := snap.Series.Last(); ok {
		return last.Value
	}
	return 0
}
