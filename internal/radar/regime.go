package radar

import (
	"context"
	"log"
	"sort"

	"WaveSentinel/internal/calculator"
	"WaveSentinel/internal/collector"
	"WaveSentinel/internal/model"
)

// RegimeIndices are the funds tracking the market's main styles.
var RegimeIndices = []model.Fund{
	{Code: "000300", Name: "沪深300 (大盘)"},
	{Code: "000905", Name: "中证500 (中盘)"},
	{Code: "002987", Name: "创业板 (成长)"},
	{Code: "001595", Name: "证券 (情绪)"},
	{Code: "012414", Name: "白酒 (消费)"},
}

const (
	regimeMinRows  = 100
	sectorLookback = 19
	// MissingMomentum ranks sectors without enough history last.
	MissingMomentum = -999.0
)

// IndexStatus is one regime index. Known is false when its history was
// too short or unavailable.
type IndexStatus struct {
	Fund    model.Fund
	Known   bool
	Bullish bool
}

// RegimeReport is the share of indices above their EMA89 life line.
type RegimeReport struct {
	Score   float64
	Label   string
	Indices []IndexStatus
}

// RegimeLabel names the market state for a bullish share.
func RegimeLabel(score float64) string {
	switch {
	case score >= 0.8:
		return "🔥 全面牛市"
	case score >= 0.6:
		return "📈 结构性牛市"
	case score <= 0.2:
		return "❄️ 极寒/底部"
	}
	return "震荡/分化"
}

// Regime counts the regime indices trading above EMA89. Unknown indices
// count as not bullish.
func Regime(ctx context.Context, f collector.Fetcher) RegimeReport {
	r := RegimeReport{Indices: make([]IndexStatus, len(RegimeIndices))}
	bullish := 0
	for i, idx := range RegimeIndices {
		st := IndexStatus{Fund: idx}
		if frame := loadFrame(ctx, f, idx.Code, regimeMinRows+1); frame != nil {
			last := frame.Last()
			st.Known = true
			st.Bullish = frame.Value[last] > frame.EMA89[last]
			if st.Bullish {
				bullish++
			}
		}
		r.Indices[i] = st
	}
	r.Score = float64(bullish) / float64(len(RegimeIndices))
	r.Label = RegimeLabel(r.Score)
	return r
}

// IndexTrend is +1 when the CSI 300 sits above its EMA144, -1 below, and 0
// when unknown.
func IndexTrend(ctx context.Context, f collector.Fetcher) int {
	frame := loadFrame(ctx, f, "000300", 1)
	if frame == nil {
		return 0
	}
	last := frame.Last()
	if frame.Value[last] > frame.EMA144[last] {
		return 1
	}
	return -1
}

// SectorMomentum is a sector's 20-row return.
type SectorMomentum struct {
	Sector   collector.Sector
	Momentum float64
	Known    bool
}

// SectorRankings ranks the sector pool by recent momentum, strongest first.
func SectorRankings(ctx context.Context, f collector.Fetcher) []SectorMomentum {
	out := make([]SectorMomentum, len(collector.SectorPool))
	for i, s := range collector.SectorPool {
		m := SectorMomentum{Sector: s, Momentum: MissingMomentum}
		series, err := f.FetchHistory(ctx, s.Code)
		if err != nil {
			log.Printf("[WARN] sector %s: %v", s.Code, err)
		} else if series.Len() > sectorLookback+1 {
			if v, err := calculator.Momentum(series.Values(), sectorLookback); err == nil {
				m.Momentum, m.Known = v, true
			}
		}
		out[i] = m
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Momentum > out[j].Momentum })
	return out
}

func loadFrame(ctx context.Context, f collector.Fetcher, code string, minRows int) *calculator.Frame {
	series, err := f.FetchHistory(ctx, code)
	if err != nil {
		log.Printf("[WARN] index %s: %v", code, err)
		return nil
	}
	if series.Len() < minRows {
		return nil
	}
	frame, err := calculator.Compute(series)
	if err != nil {
		log.Printf("[WARN] index %s: %v", code, err)
		return nil
	}
	return frame
}
