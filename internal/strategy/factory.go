package strategy

import "fmt"

// NewEvaluator builds a signal evaluator by name. Unknown parameters
// are ignored; missing ones fall back to their defaults.
func NewEvaluator(name string, params map[string]float64) (Evaluator, error) {
	switch name {
	case "technical":
		return NewTechnical(params), nil
	case "breakout":
		return NewBreakout(params), nil
	case "macd_ema":
		return NewMACDEMATrend(params), nil
	case "scalper":
		return NewScalper(params), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

func intParam(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok && v > 0 {
		return int(v)
	}
	return def
}
