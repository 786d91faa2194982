package calculator

import (
	"fmt"
	"time"

	"WaveSentinel/internal/model"
)

// Lookback periods used by the indicator set.
const (
	SpanFast        = 21
	SpanMid         = 55
	SpanLife        = 89
	SpanSlow        = 144
	ChannelLen      = 20
	RSIPeriod       = 14
	ATRPeriod       = 14
	AOFast          = 5
	AOSlow          = 34
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	LongestLookback = SpanSlow
)

// Frame holds indicator columns aligned to a NAV series. Column i depends
// only on points 0..i, so a prefix of a frame equals the frame of the prefix.
type Frame struct {
	Code  string
	Dates []time.Time
	Value []float64

	EMA21  []float64
	EMA55  []float64
	EMA89  []float64
	EMA144 []float64

	High20 []float64
	Low20  []float64

	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64

	RSI     []float64
	RSIPrev []float64

	TR  []float64
	ATR []float64

	AO     []float64
	AOPrev []float64

	PctChange []float64
}

// Compute derives every indicator column for the series. An empty series
// yields an empty frame. Out-of-order dates are a caller bug and are rejected.
func Compute(series model.NAVSeries) (*Frame, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}
	f := &Frame{Code: series.Code}
	if series.Empty() {
		return f, nil
	}

	v := series.Values()
	f.Dates = series.Dates()
	f.Value = v

	f.EMA21 = EMA(v, SpanFast)
	f.EMA55 = EMA(v, SpanMid)
	f.EMA89 = EMA(v, SpanLife)
	f.EMA144 = EMA(v, SpanSlow)

	f.High20 = RollingMax(v, ChannelLen)
	f.Low20 = RollingMin(v, ChannelLen)

	fast := EMA(v, MACDFast)
	slow := EMA(v, MACDSlow)
	f.MACD = make([]float64, len(v))
	for i := range v {
		f.MACD[i] = fast[i] - slow[i]
	}
	f.MACDSignal = EMA(f.MACD, MACDSignal)
	f.MACDHist = make([]float64, len(v))
	for i := range v {
		f.MACDHist[i] = f.MACD[i] - f.MACDSignal[i]
	}

	f.RSI = RSI(v, RSIPeriod)
	f.RSIPrev = Shift(f.RSI)

	f.TR, f.ATR = ATR(v, ATRPeriod)

	smaFast := SMA(v, AOFast)
	smaSlow := SMA(v, AOSlow)
	f.AO = make([]float64, len(v))
	for i := range v {
		f.AO[i] = smaFast[i] - smaSlow[i]
	}
	f.AOPrev = Shift(f.AO)

	f.PctChange = PctChange(v)
	return f, nil
}

// MustCompute is Compute for series already known to be valid.
func MustCompute(series model.NAVSeries) *Frame {
	f, err := Compute(series)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) Len() int { return len(f.Value) }

// Head returns a read-only view of the first n rows. The view shares storage
// with f and must not be mutated.
func (f *Frame) Head(n int) *Frame {
	if n >= f.Len() {
		return f
	}
	if n < 0 {
		n = 0
	}
	cut := func(s []float64) []float64 { return s[:n:n] }
	return &Frame{
		Code:       f.Code,
		Dates:      f.Dates[:n:n],
		Value:      cut(f.Value),
		EMA21:      cut(f.EMA21),
		EMA55:      cut(f.EMA55),
		EMA89:      cut(f.EMA89),
		EMA144:     cut(f.EMA144),
		High20:     cut(f.High20),
		Low20:      cut(f.Low20),
		MACD:       cut(f.MACD),
		MACDSignal: cut(f.MACDSignal),
		MACDHist:   cut(f.MACDHist),
		RSI:        cut(f.RSI),
		RSIPrev:    cut(f.RSIPrev),
		TR:         cut(f.TR),
		ATR:        cut(f.ATR),
		AO:         cut(f.AO),
		AOPrev:     cut(f.AOPrev),
		PctChange:  cut(f.PctChange),
	}
}

// Series rebuilds the NAV series the frame was computed from.
func (f *Frame) Series() model.NAVSeries {
	pts := make([]model.PricePoint, f.Len())
	for i := range pts {
		pts[i] = model.PricePoint{Date: f.Dates[i], Value: f.Value[i]}
	}
	return model.NAVSeries{Code: f.Code, Points: pts}
}

// Last returns the final index, or -1 for an empty frame.
func (f *Frame) Last() int { return f.Len() - 1 }
