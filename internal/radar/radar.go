// Package radar scans watch pools for entries and patrols an account for
// exits, using the live estimate as today's bar.
package radar

import (
	"context"
	"sync"

	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/strategy"
	"WaveSentinel/internal/trace"
)

// ScanOptions tunes the market radar.
type ScanOptions struct {
	MinScore int
	Limit    int
	// SuggestFraction of total assets is proposed per entry.
	SuggestFraction float64
	Workers         int
}

func DefaultScanOptions() ScanOptions {
	return ScanOptions{MinScore: 70, Limit: 15, SuggestFraction: 0.10, Workers: 8}
}

// Opportunity is a fund the radar would buy.
type Opportunity struct {
	Fund            model.Fund
	Decision        model.SignalDecision
	Price           float64
	SuggestedAmount float64
}

// Scanner evaluates funds with a classifier over collector snapshots.
type Scanner struct {
	Collector  *collector.Collector
	Classifier strategy.Classifier
}

// NewScanner uses the lean rule set when classifier is nil.
func NewScanner(c *collector.Collector, classifier strategy.Classifier) *Scanner {
	if classifier == nil {
		classifier = strategy.RuleClassifier{RuleSet: model.RuleSetLean}
	}
	return &Scanner{Collector: c, Classifier: classifier}
}

// TotalAssets is cash plus holdings at cost.
func TotalAssets(doc *model.AccountDocument) float64 {
	total := doc.Capital
	for _, h := range doc.Holdings {
		total += h.Shares * h.Cost
	}
	return total
}

type evaluation struct {
	snap     *collector.Snapshot
	decision model.SignalDecision
	err      error
}

// evaluate collects and classifies funds on a bounded worker pool. Results
// keep the input order.
func (s *Scanner) evaluate(ctx context.Context, funds []model.Fund, workers int) []evaluation {
	if workers <= 0 {
		workers = 1
	}
	out := make([]evaluation, len(funds))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = s.evaluateOne(ctx, funds[i])
			}
		}()
	}
	for i := range funds {
		if ctx.Err() != nil {
			out[i] = evaluation{err: ctx.Err()}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func (s *Scanner) evaluateOne(ctx context.Context, fund model.Fund) evaluation {
	ctx, span := trace.StartSpan(ctx, "radar.evaluate", trace.Fund(fund.Code))
	defer span.End()

	snap, err := s.Collector.Collect(ctx, fund, true)
	if err != nil {
		trace.Fail(span, err)
		return evaluation{err: err}
	}
	return evaluation{snap: snap, decision: s.Classifier.Classify(snap.Frame)}
}

// Scan returns up to opts.Limit Buy decisions scoring at least opts.MinScore,
// in pool order. Funds that cannot be loaded are skipped.
func (s *Scanner) Scan(ctx context.Context, funds []model.Fund, totalAssets float64, opts ScanOptions) []Opportunity {
	ctx, span := trace.StartSpan(ctx, "radar.Scan")
	defer span.End()

	var out []Opportunity
	for _, e := range s.evaluate(ctx, funds, opts.Workers) {
		if e.err != nil || !e.decision.IsBuy() || e.decision.Score < opts.MinScore {
			continue
		}
		out = append(out, Opportunity{
			Fund:            e.snap.Fund,
			Decision:        e.decision,
			Price:           e.snap.Price,
			SuggestedAmount: totalAssets * opts.SuggestFraction,
		})
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}
