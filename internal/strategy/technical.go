package strategy

import (
	"math"

	"margin-trader/internal/indicators"
	"margin-trader/pkg/exchanges/common"
)

// Technical combines Wilder RSI with an EMA-based MACD: oversold plus a
// MACD line above its signal goes long, overbought plus a MACD line
// below its signal goes short.
type Technical struct {
	rsiLength int
	emaFast   int
	emaSlow   int
	emaSignal int
}

func NewTechnical(params map[string]float64) *Technical {
	return &Technical{
		rsiLength: intParam(params, "rsi_length", 14),
		emaFast:   intParam(params, "ema_fast", 12),
		emaSlow:   intParam(params, "ema_slow", 26),
		emaSignal: intParam(params, "ema_signal", 9),
	}
}

func (s *Technical) Name() string    { return "technical" }
func (s *Technical) EveryTick() bool { return false }

func (s *Technical) Evaluate(candles []common.Candle) Signal {
	need := s.emaSlow + s.emaSignal
	if n := s.rsiLength + 2; n > need {
		need = n
	}
	if len(candles) < need {
		return SignalNone
	}
	closes := closesOf(candles)
	n := len(closes)

	rsi := indicators.RSISeries(closes, s.rsiLength)
	macdLine, signalLine := indicators.MACDSeries(closes, s.emaFast, s.emaSlow, s.emaSignal)
	return technicalDecision(rsi[n-2], macdLine[n-2], signalLine[n-2])
}

func technicalDecision(rsi, macdLine, signalLine float64) Signal {
	if math.IsNaN(rsi) {
		return SignalNone
	}
	switch {
	case rsi < 30 && macdLine > signalLine:
		return SignalLong
	case rsi > 70 && macdLine < signalLine:
		return SignalShort
	default:
		return SignalNone
	}
}

func closesOf(candles []common.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
