package indicators

import "math"

// StochRSISeries computes the stochastic oscillator of an RSI series:
// %K is the smoothed position of RSI within its rolling min/max band,
// %D is a moving average of %K. NaN inputs propagate as NaN until the
// window is fully populated.
func StochRSISeries(rsi []float64, period, kSmooth, dSmooth int) (k, d []float64) {
	n := len(rsi)
	k = make([]float64, n)
	d = make([]float64, n)
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = math.NaN()
		k[i] = math.NaN()
		d[i] = math.NaN()
	}
	if period <= 0 || kSmooth <= 0 || dSmooth <= 0 {
		return k, d
	}

	for i := period - 1; i < n; i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		valid := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(rsi[j]) {
				valid = false
				break
			}
			lo = math.Min(lo, rsi[j])
			hi = math.Max(hi, rsi[j])
		}
		if !valid {
			continue
		}
		if hi == lo {
			raw[i] = 50
		} else {
			raw[i] = (rsi[i] - lo) / (hi - lo) * 100
		}
	}

	smooth := func(src []float64, width int, dst []float64) {
		for i := width - 1; i < n; i++ {
			sum := 0.0
			valid := true
			for j := i - width + 1; j <= i; j++ {
				if math.IsNaN(src[j]) {
					valid = false
					break
				}
				sum += src[j]
			}
			if valid {
				dst[i] = sum / float64(width)
			}
		}
	}
	smooth(raw, kSmooth, k)
	smooth(k, dSmooth, d)
	return k, d
}
