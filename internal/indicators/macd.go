package indicators

import "math"

// MACDSeries returns the MACD line (fast EMA minus slow EMA) and its
// signal line, aligned with the input series.
func MACDSeries(values []float64, fast, slow, signal int) (macdLine, signalLine []float64) {
	emaFast := EMASeries(values, fast)
	emaSlow := EMASeries(values, slow)
	if emaFast == nil || emaSlow == nil {
		return nil, nil
	}

	macdLine = make([]float64, len(values))
	for i := range values {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine = EMASeries(macdLine, signal)
	return macdLine, signalLine
}

// MeanAbsSpread is the mean absolute distance between the MACD line and
// its signal line, used as a magnitude threshold for trend-reversal
// signals.
func MeanAbsSpread(macdLine, signalLine []float64) float64 {
	if len(macdLine) == 0 || len(macdLine) != len(signalLine) {
		return 0
	}
	sum := 0.0
	for i := range macdLine {
		sum += math.Abs(macdLine[i] - signalLine[i])
	}
	return sum / float64(len(macdLine))
}
