package model

import (
	"strings"
	"time"
)

// Fund identifies an open-end fund in a watch pool.
type Fund struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Estimate is an intraday NAV estimate published before the official close.
type Estimate struct {
	Code      string
	Name      string
	Price     float64
	ChangePct float64
	AsOf      time.Time
}

var shareClassSuffixes = []string{"发起式", "联接", "ETF"}

// Underlying strips share-class and wrapper suffixes so that the A and C
// classes of one fund, or a feeder and its ETF, compare equal.
func Underlying(name string) string {
	n := strings.TrimSpace(name)
	if l := len(n); l > 0 && n[l-1] >= 'A' && n[l-1] <= 'Z' && !strings.HasSuffix(n, "ETF") {
		n = n[:l-1]
	}
	for {
		trimmed := n
		for _, s := range shareClassSuffixes {
			trimmed = strings.TrimSuffix(trimmed, s)
		}
		if trimmed == n {
			return strings.TrimSpace(n)
		}
		n = trimmed
	}
}

// IsClassC reports whether the fund name carries the C share-class suffix.
func IsClassC(name string) bool {
	return strings.HasSuffix(strings.TrimSpace(name), "C")
}
