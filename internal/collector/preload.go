package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/model"
	"WaveSentinel/internal/trace"
)

// PreloadOptions bounds a bulk history download.
type PreloadOptions struct {
	Workers int
	// Timeout applies to each fund separately.
	Timeout time.Duration
	// Dedupe drops later funds sharing an underlying with an earlier one.
	Dedupe bool
	// Limit caps the number of funds loaded after de-duplication; 0 is no cap.
	Limit int
	// Progress, when set, is called after each fund completes.
	Progress func(done, total int)
}

func DefaultPreloadOptions() PreloadOptions {
	return PreloadOptions{Workers: 10, Timeout: 20 * time.Second, Dedupe: true, Limit: 100}
}

// LoadResult is the outcome for one fund. Exactly one of Frame and Err is set.
type LoadResult struct {
	Fund    model.Fund
	Frame   *calculator.Frame
	Err     error
	Elapsed time.Duration
}

// Preload downloads and computes frames for funds on a bounded worker pool.
// Results keep the order of the (de-duplicated) input; failures are reported
// per fund and do not stop the others.
func Preload(ctx context.Context, f Fetcher, funds []model.Fund, opts PreloadOptions) []LoadResult {
	ctx, span := trace.StartSpan(ctx, "collector.Preload")
	defer span.End()

	funds = DedupeCodes(funds)
	if opts.Dedupe {
		funds = DedupeUnderlying(funds)
	}
	if opts.Limit > 0 && len(funds) > opts.Limit {
		funds = funds[:opts.Limit]
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]LoadResult, len(funds))
	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = loadOne(ctx, f, funds[i], opts.Timeout)
				if opts.Progress != nil {
					mu.Lock()
					done++
					n := done
					mu.Unlock()
					opts.Progress(n, len(funds))
				}
			}
		}()
	}

	for i := range funds {
		if ctx.Err() != nil {
			results[i] = LoadResult{Fund: funds[i], Err: ctx.Err()}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			if !errors.Is(r.Err, ErrNoData) {
				log.Printf("[WARN] preload %s: %v", r.Fund.Code, r.Err)
			}
		}
	}
	log.Printf("[INFO] preloaded %d/%d funds via %s", len(funds)-failed, len(funds), f.Name())
	return results
}

func loadOne(ctx context.Context, f Fetcher, fund model.Fund, timeout time.Duration) LoadResult {
	ctx, span := trace.StartSpan(ctx, "collector.load", trace.Fund(fund.Code))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	res := LoadResult{Fund: fund}
	series, err := f.FetchHistory(ctx, fund.Code)
	if err == nil {
		res.Frame, err = calculator.Compute(series)
	}
	if err != nil {
		res.Err = fmt.Errorf("load %s: %w", fund.Code, err)
		res.Frame = nil
		trace.Fail(span, res.Err)
	}
	res.Elapsed = time.Since(start)
	return res
}

// Loaded returns only the successful results.
func Loaded(results []LoadResult) []LoadResult {
	var out []LoadResult
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r)
		}
	}
	return out
}

// DedupeUnderlying keeps the first fund of each underlying.
func DedupeUnderlying(funds []model.Fund) []model.Fund {
	seen := make(map[string]bool, len(funds))
	var out []model.Fund
	for _, f := range funds {
		key := model.Underlying(f.Name)
		if key == "" {
			key = f.Code
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

// DedupeCodes keeps the first occurrence of each fund code.
func DedupeCodes(funds []model.Fund) []model.Fund {
	seen := make(map[string]bool, len(funds))
	var out []model.Fund
	for _, f := range funds {
		if seen[f.Code] {
			continue
		}
		seen[f.Code] = true
		out = append(out, f)
	}
	return out
}
