package strategy

import "WaveSentinel/internal/model"

// DefaultDeviation is the retracement that confirms a swing.
const DefaultDeviation = 0.05

// minZigZagPoints is the shortest series that can carry swing structure.
const minZigZagPoints = 10

// ZigZag extracts swing pivots in one forward pass. The first move beyond
// deviation sets the trend; a retracement of deviation from the running
// extreme commits that extreme and flips the trend. The last extreme is
// always emitted, typed by the final trend.
func ZigZag(series model.NAVSeries, deviation float64) []model.Pivot {
	pts := series.Points
	if len(pts) < minZigZagPoints {
		return nil
	}

	pivotAt := func(i int, kind model.PivotKind) model.Pivot {
		return model.Pivot{Index: i, Date: pts[i].Date, Value: pts[i].Value, Kind: kind}
	}

	pivots := []model.Pivot{pivotAt(0, model.PivotStart)}
	direction := 0
	extIdx := 0
	extVal := pts[0].Value

	for i := 1; i < len(pts); i++ {
		cur := pts[i].Value
		change := 0.0
		if extVal != 0 {
			change = (cur - extVal) / extVal
		}

		switch direction {
		case 0:
			if change >= deviation {
				direction, extIdx, extVal = 1, i, cur
			} else if change <= -deviation {
				direction, extIdx, extVal = -1, i, cur
			}
		case 1:
			if cur > extVal {
				extIdx, extVal = i, cur
			} else if change <= -deviation {
				pivots = append(pivots, pivotAt(extIdx, model.PivotHigh))
				direction, extIdx, extVal = -1, i, cur
			}
		case -1:
			if cur < extVal {
				extIdx, extVal = i, cur
			} else if change >= deviation {
				pivots = append(pivots, pivotAt(extIdx, model.PivotLow))
				direction, extIdx, extVal = 1, i, cur
			}
		}
	}

	kind := model.PivotLow
	if direction == 1 {
		kind = model.PivotHigh
	}
	return append(pivots, pivotAt(extIdx, kind))
}
