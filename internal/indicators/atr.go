package indicators

import (
	"math"

	"margin-trader/pkg/exchanges/common"
)

const atrWindow = 14

// ATR is the mean absolute close-minus-open over the 14 candles
// preceding the most recent two; the in-formation candle never
// contributes.
func ATR(candles []common.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	start := len(candles) - atrWindow - 1
	if start < 0 {
		start = 0
	}
	window := candles[start : len(candles)-1]
	if len(window) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range window {
		sum += math.Abs(c.Close - c.Open)
	}
	if len(window) < atrWindow {
		return sum / float64(len(window))
	}
	return sum / atrWindow
}
