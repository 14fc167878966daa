package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"margin-trader/pkg/exchanges/common"
)

func TestEMASeriesConstantInput(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100, 100}
	ema := EMASeries(values, 3)
	require.Len(t, ema, len(values))
	for i, v := range ema {
		assert.InDelta(t, 100, v, 1e-9, "index %d", i)
	}
}

func TestEMASeriesConverges(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		if i < 100 {
			values[i] = 50
		} else {
			values[i] = 150
		}
	}
	ema := EMASeries(values, 10)
	require.Len(t, ema, 200)
	// Long after the step the EMA should sit close to the new level.
	assert.InDelta(t, 150, ema[199], 0.01)
	// And it must lag the raw series right after the step.
	assert.Less(t, ema[101], 150.0)
}

func TestRSISeriesExtremes(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
	}
	rsi := RSISeries(up, 14)
	require.Len(t, rsi, 30)
	assert.True(t, math.IsNaN(rsi[13]), "warm-up window must be NaN")
	assert.InDelta(t, 100, rsi[29], 1e-9, "all-gains series pegs RSI at 100")

	down := make([]float64, 30)
	for i := range down {
		down[i] = float64(200 - i)
	}
	rsi = RSISeries(down, 14)
	assert.InDelta(t, 0, rsi[29], 1e-9, "all-losses series pegs RSI at 0")

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	rsi = RSISeries(flat, 14)
	assert.InDelta(t, 50, rsi[29], 1e-9, "flat series reads neutral")
}

func TestRSISeriesBounded(t *testing.T) {
	values := []float64{44, 47, 45, 50, 48, 52, 49, 53, 51, 55, 52, 56, 54, 58, 55, 59, 57, 61, 58, 62}
	rsi := RSISeries(values, 14)
	for i := 14; i < len(rsi); i++ {
		assert.GreaterOrEqual(t, rsi[i], 0.0)
		assert.LessOrEqual(t, rsi[i], 100.0)
	}
}

func TestMACDSeriesConstantInputIsZero(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 42
	}
	macd, signal := MACDSeries(values, 12, 26, 9)
	require.Len(t, macd, 50)
	require.Len(t, signal, 50)
	assert.InDelta(t, 0, macd[49], 1e-9)
	assert.InDelta(t, 0, signal[49], 1e-9)
}

func TestMACDSeriesRisingTrendPositive(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(100 + i)
	}
	macd, signal := MACDSeries(values, 12, 26, 9)
	assert.Positive(t, macd[99], "fast EMA above slow EMA in an uptrend")
	assert.Positive(t, signal[99])
}

func TestATRMeanAbsoluteBody(t *testing.T) {
	var candles []common.Candle
	for i := 0; i < 16; i++ {
		candles = append(candles, common.Candle{Open: 100, Close: 102})
	}
	// The in-formation candle must not contribute.
	candles[len(candles)-1].Close = 500
	assert.InDelta(t, 2.0, ATR(candles), 1e-9)
}

func TestATRShortHistory(t *testing.T) {
	candles := []common.Candle{
		{Open: 100, Close: 104},
		{Open: 104, Close: 102},
		{Open: 102, Close: 102},
	}
	// Two completed candles with bodies 4 and 2.
	assert.InDelta(t, 3.0, ATR(candles), 1e-9)
}

func TestPivotHighsOnPlateau(t *testing.T) {
	// Monotonically non-decreasing: rises to 110 then plateaus long
	// enough for the running maximum to stabilize.
	var values []float64
	for i := 0; i <= 10; i++ {
		values = append(values, float64(100+i))
	}
	for i := 0; i < 8; i++ {
		values = append(values, 110)
	}
	require.GreaterOrEqual(t, len(values), 15)

	pivots := PivotHighs(values)
	require.NotEmpty(t, pivots, "stable running maximum must produce a pivot")
	assert.Equal(t, 110.0, pivots[len(pivots)-1])
}

func TestPivotLowsOnValley(t *testing.T) {
	values := []float64{110, 108, 106, 104, 102, 100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110}
	pivots := PivotLows(values)
	require.NotEmpty(t, pivots)
	assert.Equal(t, 100.0, pivots[0], "valley floor becomes the support pivot")
}

func TestPivotHighsStrictlyIncreasingHasNone(t *testing.T) {
	var values []float64
	for i := 0; i < 30; i++ {
		values = append(values, float64(i))
	}
	assert.Empty(t, PivotHighs(values), "a maximum that changes every insertion never stabilizes")
}

func TestStochRSISeriesBoundsAndCross(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	rsi := RSISeries(values, 14)
	k, d := StochRSISeries(rsi, 14, 3, 3)
	require.Len(t, k, 120)

	for i := 40; i < 120; i++ {
		require.False(t, math.IsNaN(k[i]), "index %d", i)
		assert.GreaterOrEqual(t, k[i], 0.0)
		assert.LessOrEqual(t, k[i], 100.0)
	}

	// On an oscillating series %K must cross %D at least once.
	crossed := false
	for i := 41; i < 120; i++ {
		if (k[i-1]-d[i-1])*(k[i]-d[i]) < 0 {
			crossed = true
			break
		}
	}
	assert.True(t, crossed)
}
