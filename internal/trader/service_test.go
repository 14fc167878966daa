package trader

import (
	"context"
	"testing"

	"margin-trader/internal/events"
	"margin-trader/internal/strategy"
	"margin-trader/pkg/config"
	"margin-trader/pkg/exchanges/common"
)

type fakeHistory struct {
	calls int
}

func (f *fakeHistory) GetKlines(_ context.Context, _, _ string, limit int) ([]common.Candle, error) {
	f.calls++
	out := make([]common.Candle, limit)
	for i := range out {
		out[i] = common.Candle{OpenTime: int64(i) * 60_000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	}
	return out, nil
}

type nilExec struct{}

func (nilExec) PlaceEntry(context.Context, common.Contract, common.Side, float64, float64) (common.OrderResult, error) {
	return common.OrderResult{Status: common.StatusFilled}, nil
}
func (nilExec) PlaceExit(context.Context, common.Contract, common.Side, float64, float64) (common.OrderResult, error) {
	return common.OrderResult{Status: common.StatusFilled}, nil
}
func (nilExec) OrderStatus(context.Context, common.Contract, int64) (common.OrderResult, error) {
	return common.OrderResult{Status: common.StatusFilled}, nil
}

type nilBalance struct{}

func (nilBalance) Free(string) float64 { return 0 }

func newTestService() (*Service, *strategy.Registry, *fakeHistory) {
	reg := strategy.NewRegistry()
	hist := &fakeHistory{}
	svc := NewService(ServiceConfig{
		Bus:      events.NewBus(),
		Registry: reg,
		History:  hist,
		Contracts: map[common.Market]map[string]common.Contract{
			common.MarketSpot: {
				"BTCUSDT": common.NewContract("BTCUSDT", "BTC", "USDT", 6, common.MarketSpot),
			},
			common.MarketMargin: {},
		},
		SpotBalances:   nilBalance{},
		SpotExecutor:   nilExec{},
		MarginExecutor: nilExec{},
		DefaultUSDT:    50,
		DefaultRTR:     2,
	})
	return svc, reg, hist
}

func TestActivateAndDeactivate(t *testing.T) {
	svc, reg, hist := newTestService()
	ctx := context.Background()

	id, err := svc.Activate(ctx, config.Activation{
		Market:    "spot",
		Symbol:    "btcusdt",
		Timeframe: "1m",
		Strategy:  "breakout",
	})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if hist.calls != 1 {
		t.Errorf("backfill calls = %d, want 1", hist.calls)
	}

	eng, ok := reg.Get(common.MarketSpot, id)
	if !ok {
		t.Fatal("engine not registered")
	}
	if len(eng.Candles()) != backfillCandles {
		t.Errorf("seeded candles = %d, want %d", len(eng.Candles()), backfillCandles)
	}

	// A duplicate activation is rejected.
	if _, err := svc.Activate(ctx, config.Activation{Market: "spot", Symbol: "BTCUSDT", Timeframe: "1m", Strategy: "breakout"}); err == nil {
		t.Fatal("duplicate activation accepted")
	}

	if err := svc.Deactivate("spot", id); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := svc.Deactivate("spot", id); err == nil {
		t.Fatal("second Deactivate succeeded")
	}
}

func TestActivateRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		act  config.Activation
	}{
		{"unknown market", config.Activation{Market: "futures", Symbol: "BTCUSDT", Timeframe: "1m", Strategy: "breakout"}},
		{"unknown symbol", config.Activation{Market: "spot", Symbol: "DOGEBTC", Timeframe: "1m", Strategy: "breakout"}},
		{"symbol not on margin", config.Activation{Market: "margin", Symbol: "BTCUSDT", Timeframe: "1m", Strategy: "breakout"}},
		{"unknown strategy", config.Activation{Market: "spot", Symbol: "BTCUSDT", Timeframe: "1m", Strategy: "grid"}},
		{"unknown timeframe", config.Activation{Market: "spot", Symbol: "BTCUSDT", Timeframe: "7m", Strategy: "breakout"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Activate(ctx, tc.act); err == nil {
				t.Fatalf("Activate(%+v) succeeded, want error", tc.act)
			}
		})
	}
}
