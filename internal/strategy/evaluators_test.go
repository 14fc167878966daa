package strategy

import (
	"testing"

	"margin-trader/pkg/exchanges/common"
)

func TestTechnicalDecision(t *testing.T) {
	tests := []struct {
		name       string
		rsi        float64
		macdLine   float64
		signalLine float64
		want       Signal
	}{
		{"oversold with bullish macd", 25, 2, 1, SignalLong},
		{"overbought with bearish macd", 75, -1, 1, SignalShort},
		{"neutral rsi", 50, 2, 1, SignalNone},
		{"oversold but bearish macd", 25, 0, 1, SignalNone},
		{"overbought but bullish macd", 75, 2, 1, SignalNone},
		{"boundary rsi 30", 30, 2, 1, SignalNone},
		{"boundary rsi 70", 70, -1, 1, SignalNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := technicalDecision(tt.rsi, tt.macdLine, tt.signalLine); got != tt.want {
				t.Errorf("technicalDecision(%v, %v, %v) = %d, want %d", tt.rsi, tt.macdLine, tt.signalLine, got, tt.want)
			}
		})
	}
}

func TestTechnicalEvaluateGuards(t *testing.T) {
	eval := NewTechnical(nil)

	if got := eval.Evaluate(nil); got != SignalNone {
		t.Errorf("empty history = %d, want none", got)
	}
	if got := eval.Evaluate(flatCandles(10, 100)); got != SignalNone {
		t.Errorf("short history = %d, want none", got)
	}

	// A steady downtrend is oversold but the macd line trails its
	// signal, so no entry fires.
	candles := make([]common.Candle, 60)
	for i := range candles {
		p := float64(200 - i)
		candles[i] = common.Candle{Open: p + 1, Close: p, High: p + 1, Low: p}
	}
	if got := eval.Evaluate(candles); got != SignalNone {
		t.Errorf("downtrend = %d, want none", got)
	}
}

func TestBreakoutEvaluate(t *testing.T) {
	eval := NewBreakout(map[string]float64{"min_volume": 10})

	base := []common.Candle{
		{Open: 100, High: 105, Low: 95, Close: 102, Volume: 50},
	}
	tests := []struct {
		name string
		last common.Candle
		want Signal
	}{
		{"close above prior high on volume", common.Candle{Close: 106, Volume: 20}, SignalLong},
		{"close below prior low on volume", common.Candle{Close: 94, Volume: 20}, SignalShort},
		{"breakout without volume", common.Candle{Close: 106, Volume: 5}, SignalNone},
		{"inside prior range", common.Candle{Close: 101, Volume: 20}, SignalNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := append(append([]common.Candle{}, base...), tt.last)
			if got := eval.Evaluate(candles); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}

	if got := eval.Evaluate(base); got != SignalNone {
		t.Errorf("single candle = %d, want none", got)
	}
}

func TestMACDEMATrendNoSignalOnFlat(t *testing.T) {
	eval := NewMACDEMATrend(map[string]float64{"ema_period": 20})
	if got := eval.Evaluate(flatCandles(100, 100)); got != SignalNone {
		t.Errorf("flat series = %d, want none", got)
	}
	if got := eval.Evaluate(flatCandles(10, 100)); got != SignalNone {
		t.Errorf("short history = %d, want none", got)
	}
}

func TestScalperGuards(t *testing.T) {
	eval := NewScalper(map[string]float64{"ema_slow": 30})
	if got := eval.Evaluate(flatCandles(10, 100)); got != SignalNone {
		t.Errorf("short history = %d, want none", got)
	}
	if got := eval.Evaluate(flatCandles(80, 100)); got != SignalNone {
		t.Errorf("flat series = %d, want none", got)
	}
}

func TestNewEvaluator(t *testing.T) {
	for _, name := range []string{"technical", "breakout", "macd_ema", "scalper"} {
		eval, err := NewEvaluator(name, nil)
		if err != nil {
			t.Fatalf("NewEvaluator(%q): %v", name, err)
		}
		if eval.Name() != name {
			t.Errorf("Name() = %q, want %q", eval.Name(), name)
		}
	}
	if _, err := NewEvaluator("grid", nil); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}

func flatCandles(n int, price float64) []common.Candle {
	out := make([]common.Candle, n)
	for i := range out {
		out[i] = common.Candle{OpenTime: int64(i) * 60_000, Open: price, High: price, Low: price, Close: price, Volume: 1}
	}
	return out
}
