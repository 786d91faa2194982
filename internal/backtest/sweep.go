package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WaveSentinel/internal/model"
)

// SweepPoint is the outcome of entering the strategy on one start date and
// holding through the end of the range.
type SweepPoint struct {
	Start       time.Time
	TotalReturn float64
	MaxDrawdown float64
	WinRate     float64
	Err         error
}

// SweepOptions controls a start-date sweep.
type SweepOptions struct {
	StepDays int
	// Tail is the minimum span left between the last start and cfg.End.
	Tail    time.Duration
	Workers int
}

func DefaultSweepOptions() SweepOptions {
	return SweepOptions{StepDays: 15, Tail: 90 * 24 * time.Hour, Workers: 4}
}

// SweepStarts lists start dates every StepDays from start while leaving at
// least Tail before end.
func SweepStarts(start, end time.Time, opts SweepOptions) []time.Time {
	var out []time.Time
	if opts.StepDays <= 0 {
		return out
	}
	limit := end.Add(-opts.Tail)
	for cur := start; cur.Before(limit); cur = cur.AddDate(0, 0, opts.StepDays) {
		out = append(out, cur)
	}
	return out
}

// Sweep runs the simulator once per start date. Runs share the read-only
// frames and execute on a bounded set of workers; each writes only its own
// slot.
func Sweep(ctx context.Context, instruments []Instrument, cfg Config, opts SweepOptions) ([]SweepPoint, error) {
	starts := SweepStarts(cfg.Start, cfg.End, opts)
	if len(starts) == 0 {
		return nil, fmt.Errorf("sweep %s..%s: %w", cfg.Start.Format(model.DateLayout), cfg.End.Format(model.DateLayout), ErrEmptyRange)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	out := make([]SweepPoint, len(starts))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c := cfg
				c.Start = starts[i]
				p := SweepPoint{Start: starts[i]}
				res, err := Run(instruments, c)
				if err != nil {
					p.Err = err
				} else {
					p.TotalReturn = res.Summary.TotalReturn
					p.MaxDrawdown = res.Summary.MaxDrawdown
					p.WinRate = res.Summary.WinRate
				}
				out[i] = p
			}
		}()
	}
	var err error
feed:
	for i := range starts {
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return out, nil
}
