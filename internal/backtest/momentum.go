package backtest

import (
	"sort"

	"WaveSentinel/internal/calculator"
)

type momentumScore struct {
	code string
	mom  float64
}

// rankMomentum scores every instrument with a bar on day and at least window
// prior rows, strongest first, ties broken by code.
func rankMomentum(tracks []*track, day, window int) []momentumScore {
	var out []momentumScore
	for _, t := range tracks {
		row, ok := t.at(day)
		if !ok || row < window {
			continue
		}
		mom, err := calculator.Momentum(t.Frame.Value[:row+1], window)
		if err != nil {
			continue
		}
		out = append(out, momentumScore{code: t.Code, mom: mom})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].mom != out[j].mom {
			return out[i].mom > out[j].mom
		}
		return out[i].code < out[j].code
	})
	return out
}

func topCodes(ranked []momentumScore, n int) map[string]bool {
	if n > len(ranked) {
		n = len(ranked)
	}
	set := make(map[string]bool, n)
	for _, s := range ranked[:n] {
		set[s.code] = true
	}
	return set
}

// cutoff is the momentum of the n-th ranked instrument.
func cutoff(ranked []momentumScore, n int) (float64, bool) {
	if len(ranked) == 0 {
		return 0, false
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[n-1].mom, true
}
