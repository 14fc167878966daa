package strategy

import (
	"math"

	"margin-trader/internal/indicators"
	"margin-trader/pkg/exchanges/common"
)

// Scalper looks for exhaustion moves: price stretched outside the
// 50/200 EMA band by an ATR multiple, an RSI divergence against the
// last RSI pivot, and a stochastic-RSI %K/%D crossover in the trade
// direction on the last completed candle.
type Scalper struct {
	emaFast     int
	emaSlow     int
	rsiLength   int
	stochPeriod int
	kSmooth     int
	dSmooth     int
	atrMult     float64
}

func NewScalper(params map[string]float64) *Scalper {
	return &Scalper{
		emaFast:     intParam(params, "ema_fast", 50),
		emaSlow:     intParam(params, "ema_slow", 200),
		rsiLength:   intParam(params, "rsi_length", 14),
		stochPeriod: intParam(params, "stoch_period", 14),
		kSmooth:     intParam(params, "stoch_k", 3),
		dSmooth:     intParam(params, "stoch_d", 3),
		atrMult:     param(params, "atr_multiplier", 1),
	}
}

func (s *Scalper) Name() string    { return "scalper" }
func (s *Scalper) EveryTick() bool { return false }

func (s *Scalper) Evaluate(candles []common.Candle) Signal {
	need := s.emaSlow
	if n := s.rsiLength + s.stochPeriod + s.kSmooth + s.dSmooth + 2; n > need {
		need = n
	}
	if len(candles) < need {
		return SignalNone
	}
	closes := closesOf(candles)
	n := len(closes)
	i := n - 2

	emaFast := indicators.EMASeries(closes, s.emaFast)
	emaSlow := indicators.EMASeries(closes, s.emaSlow)
	atr := indicators.ATR(candles)
	bandHigh := math.Max(emaFast[i], emaSlow[i]) + s.atrMult*atr
	bandLow := math.Min(emaFast[i], emaSlow[i]) - s.atrMult*atr

	rsi := indicators.RSISeries(closes, s.rsiLength)
	k, d := indicators.StochRSISeries(rsi, s.stochPeriod, s.kSmooth, s.dSmooth)
	if math.IsNaN(rsi[i]) || math.IsNaN(k[i]) || math.IsNaN(k[i-1]) {
		return SignalNone
	}

	// Pivots scan the RSI series itself with the warm-up NaNs dropped.
	clean := rsi[:i+1]
	for len(clean) > 0 && math.IsNaN(clean[0]) {
		clean = clean[1:]
	}

	crossUp := k[i-1] <= d[i-1] && k[i] > d[i]
	crossDown := k[i-1] >= d[i-1] && k[i] < d[i]

	if closes[i] < bandLow && crossUp {
		// Bullish divergence: momentum holds a higher low than its
		// last confirmed pivot while price breaks down.
		if lows := indicators.PivotLows(clean); len(lows) > 0 && rsi[i] > lows[len(lows)-1] {
			return SignalLong
		}
	}
	if closes[i] > bandHigh && crossDown {
		if highs := indicators.PivotHighs(clean); len(highs) > 0 && rsi[i] < highs[len(highs)-1] {
			return SignalShort
		}
	}
	return SignalNone
}
