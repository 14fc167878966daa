package strategy

import (
	"margin-trader/internal/indicators"
	"margin-trader/pkg/exchanges/common"
)

// MACDEMATrend trades reversals of a washed-out MACD against the trend
// filter: price must sit outside the long EMA by 0.7 ATR, the MACD line
// two candles back must exceed a magnitude floor (mean absolute
// MACD-minus-signal over the series times 0.85), and the MACD must have
// crossed its signal between the last two completed candles.
type MACDEMATrend struct {
	emaPeriod int
	emaFast   int
	emaSlow   int
	emaSignal int
}

func NewMACDEMATrend(params map[string]float64) *MACDEMATrend {
	return &MACDEMATrend{
		emaPeriod: intParam(params, "ema_period", 200),
		emaFast:   intParam(params, "macd_ema_fast", 12),
		emaSlow:   intParam(params, "macd_ema_slow", 26),
		emaSignal: intParam(params, "macd_ema_signal", 9),
	}
}

func (s *MACDEMATrend) Name() string    { return "macd_ema" }
func (s *MACDEMATrend) EveryTick() bool { return false }

func (s *MACDEMATrend) Evaluate(candles []common.Candle) Signal {
	if len(candles) < s.emaSlow+s.emaSignal+1 || len(candles) < 3 {
		return SignalNone
	}
	closes := closesOf(candles)
	n := len(closes)

	macdLine, signalLine := indicators.MACDSeries(closes, s.emaFast, s.emaSlow, s.emaSignal)
	floor := indicators.MeanAbsSpread(macdLine, signalLine) * 0.85
	ema := indicators.EMASeries(closes, s.emaPeriod)[n-2]
	atr := indicators.ATR(candles)
	last := candles[n-2]

	crossed := (signalLine[n-3]-macdLine[n-3])*(signalLine[n-2]-macdLine[n-2]) < 0
	switch {
	case last.Close > ema+0.7*atr && macdLine[n-3] < -floor && crossed:
		return SignalLong
	case last.Close < ema-0.7*atr && macdLine[n-3] > floor && crossed:
		return SignalShort
	default:
		return SignalNone
	}
}
