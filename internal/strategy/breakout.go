package strategy

import (
	"margin-trader/pkg/exchanges/common"
)

// Breakout fires when the forming candle closes through the prior
// completed candle's range on sufficient volume. It evaluates every
// tick rather than waiting for a period boundary.
type Breakout struct {
	minVolume float64
}

func NewBreakout(params map[string]float64) *Breakout {
	return &Breakout{minVolume: params["min_volume"]}
}

func (s *Breakout) Name() string    { return "breakout" }
func (s *Breakout) EveryTick() bool { return true }

func (s *Breakout) Evaluate(candles []common.Candle) Signal {
	if len(candles) < 2 {
		return SignalNone
	}
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	switch {
	case last.Close > prev.High && last.Volume > s.minVolume:
		return SignalLong
	case last.Close < prev.Low && last.Volume > s.minVolume:
		return SignalShort
	default:
		return SignalNone
	}
}
