package collector

import (
	"context"
	"errors"

	"WaveSentinel/internal/model"
)

// ErrNoData means the source had nothing for the fund. Callers skip the fund.
var ErrNoData = errors.New("no data")

// Fetcher defines the interface for fetching fund NAV data.
type Fetcher interface {
	FetchHistory(ctx context.Context, code string) (model.NAVSeries, error)
	FetchEstimate(ctx context.Context, code string) (*model.Estimate, error)
	Name() string
}
