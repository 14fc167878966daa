package strategy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"margin-trader/internal/events"
	"margin-trader/internal/indicators"
	"margin-trader/pkg/exchanges/common"
)

// timeframes maps a timeframe label to its period in milliseconds.
var timeframes = map[string]int64{
	"1m":  60_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"4h":  14_400_000,
}

// ValidTimeframe reports whether tf is a supported candle period.
func ValidTimeframe(tf string) bool {
	_, ok := timeframes[tf]
	return ok
}

// staleTickThreshold is how far a trade timestamp may lag wall clock
// before the engine logs a data-gap warning.
const staleTickThreshold = 2000 * time.Millisecond

// EngineConfig wires one strategy activation.
type EngineConfig struct {
	Bus          *events.Bus
	Contract     common.Contract
	Timeframe    string
	USDTInput    float64
	RiskToReward float64
	Evaluator    Evaluator
	Executor     Executor
	Balances     BalanceSource
}

// Engine runs one (contract, timeframe, algorithm) activation. It owns
// its candle sequence and trade history; ticks for one symbol arrive in
// order on a single stream, so the mutex only guards against PnL
// updates and control-surface reads from other goroutines.
type Engine struct {
	bus          *events.Bus
	contract     common.Contract
	timeframe    string
	period       int64
	usdtInput    float64
	riskToReward float64
	eval         Evaluator
	exec         Executor
	balances     BalanceSource

	mu      sync.Mutex
	candles []common.Candle
	trades  []*Trade
	open    bool
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	period, ok := timeframes[cfg.Timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", cfg.Timeframe)
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("no evaluator configured")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("no executor configured")
	}
	if cfg.USDTInput <= 0 {
		return nil, fmt.Errorf("usdt input must be positive, got %v", cfg.USDTInput)
	}
	return &Engine{
		bus:          cfg.Bus,
		contract:     cfg.Contract,
		timeframe:    cfg.Timeframe,
		period:       period,
		usdtInput:    cfg.USDTInput,
		riskToReward: cfg.RiskToReward,
		eval:         cfg.Evaluator,
		exec:         cfg.Executor,
		balances:     cfg.Balances,
	}, nil
}

// ID identifies the activation within its market.
func (e *Engine) ID() string {
	return strings.ToLower(fmt.Sprintf("%s-%s-%s", e.contract.Symbol, e.timeframe, e.eval.Name()))
}

func (e *Engine) Contract() common.Contract { return e.contract }
func (e *Engine) Timeframe() string         { return e.timeframe }
func (e *Engine) StrategyName() string      { return e.eval.Name() }

// SeedCandles installs the historical backfill. Call before the first
// tick.
func (e *Engine) SeedCandles(candles []common.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candles = append(e.candles[:0], candles...)
}

// Candles returns a copy of the candle sequence.
func (e *Engine) Candles() []common.Candle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]common.Candle, len(e.candles))
	copy(out, e.candles)
	return out
}

// Trades returns a snapshot of the trade history.
func (e *Engine) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, 0, len(e.trades))
	for _, t := range e.trades {
		out = append(out, *t)
	}
	return out
}

// ApplyTick folds one trade tick into the candle sequence and reports
// whether it stayed in the current period or crossed into a new one.
// Skipped periods are filled with flat zero-volume candles so the
// sequence stays strictly period-aligned.
func (e *Engine) ApplyTick(price, size float64, ts int64) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lag := time.Now().UnixMilli() - ts; lag >= staleTickThreshold.Milliseconds() {
		e.logf("trade tick for %s %s lags wall clock by %dms", e.contract.Symbol, e.timeframe, lag)
		e.bus.Publish(events.EventDataGap, fmt.Sprintf("%s stale tick %dms", e.contract.Symbol, lag))
	}

	if len(e.candles) == 0 {
		e.candles = append(e.candles, tickCandle(ts-ts%e.period, price, size))
		return TickSameCandle
	}

	last := &e.candles[len(e.candles)-1]
	switch {
	case ts < last.OpenTime+e.period:
		last.Close = price
		last.Volume += size
		if price > last.High {
			last.High = price
		}
		if price < last.Low {
			last.Low = price
		}
		return TickSameCandle

	case ts >= last.OpenTime+2*e.period:
		missed := (ts-last.OpenTime)/e.period - 1
		for i := int64(0); i < missed; i++ {
			prev := e.candles[len(e.candles)-1]
			e.candles = append(e.candles, flatCandle(prev.OpenTime+e.period, prev.Close))
		}
		prev := e.candles[len(e.candles)-1]
		e.candles = append(e.candles, tickCandle(prev.OpenTime+e.period, price, size))
		e.logf("filled %d missing %s candles for %s", missed, e.timeframe, e.contract.Symbol)
		e.bus.Publish(events.EventDataGap, fmt.Sprintf("%s %s: %d candles synthesized", e.contract.Symbol, e.timeframe, missed))
		return TickNewCandle

	default:
		e.candles = append(e.candles, tickCandle(last.OpenTime+e.period, price, size))
		return TickNewCandle
	}
}

func tickCandle(openTime int64, price, size float64) common.Candle {
	return common.Candle{OpenTime: openTime, Open: price, High: price, Low: price, Close: price, Volume: size}
}

func flatCandle(openTime int64, close float64) common.Candle {
	return common.Candle{OpenTime: openTime, Open: close, High: close, Low: close, Close: close, Volume: 0}
}

// CheckTrade runs exit evaluation while a position is open, otherwise
// evaluates the signal algorithm and opens a position on long/short.
// Signals fire only on completed periods unless the evaluator asks for
// every tick.
func (e *Engine) CheckTrade(ctx context.Context, res TickResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open {
		e.checkExit(ctx)
		return
	}
	if !e.eval.EveryTick() && res != TickNewCandle {
		return
	}
	if sig := e.eval.Evaluate(e.candles); sig != SignalNone {
		e.openPosition(ctx, sig)
	}
}

// UpdatePnL recomputes the running PnL of every open trade from the
// latest book ticker: longs exit into the bid, shorts cover at the ask.
func (e *Engine) UpdatePnL(bid, ask float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.trades {
		if t.Status != TradeOpen || t.EntryPrice == 0 {
			continue
		}
		if t.Side == DirLong {
			t.PnL = (bid - t.EntryPrice) * t.Quantity
		} else {
			t.PnL = (t.EntryPrice - ask) * t.Quantity
		}
	}
}

func (e *Engine) openPosition(ctx context.Context, sig Signal) {
	price := e.candles[len(e.candles)-1].Close
	qty, err := e.tradeSize(price)
	if err != nil {
		e.logf("sizing aborted for %s %s: %v", e.contract.Symbol, e.timeframe, err)
		return
	}

	side, dir := common.SideBuy, DirLong
	if sig == SignalShort {
		side, dir = common.SideSell, DirShort
	}
	e.logf("%s signal on %s %s", dir, e.contract.Symbol, e.timeframe)

	res, err := e.exec.PlaceEntry(ctx, e.contract, side, qty, e.usdtInput)
	if err != nil {
		e.logf("entry order failed on %s %s: %v", e.contract.Symbol, e.timeframe, err)
		return
	}
	e.logf("%s entry placed on %s %s, status %s", side, e.contract.Symbol, e.timeframe, res.Status)

	entry := price
	if res.Filled() && res.AvgPrice > 0 {
		entry = res.AvgPrice
	}
	trade := &Trade{
		ID:           uuid.NewString(),
		OpenTime:     time.Now(),
		Market:       e.contract.Market,
		Symbol:       e.contract.Symbol,
		Strategy:     e.eval.Name(),
		Side:         dir,
		EntryPrice:   entry,
		Status:       TradeOpen,
		Quantity:     qty,
		EntryOrderID: res.OrderID,
	}
	e.setExitLevels(trade)
	e.trades = append(e.trades, trade)
	e.open = true
	e.bus.Publish(events.EventTradeOpened, *trade)

	if !res.Filled() {
		go e.pollFill(ctx, trade.ID, res.OrderID)
	}
}

// tradeSize converts the configured quote amount into a base quantity
// snapped to the contract tick size. Sizing fails when the funding
// account does not hold the full quote amount.
func (e *Engine) tradeSize(price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("no price")
	}
	free := e.balances.Free(e.contract.QuoteAsset)
	if free < e.usdtInput {
		return 0, fmt.Errorf("%s free balance %.2f below input %.2f", e.contract.QuoteAsset, free, e.usdtInput)
	}
	qty := e.usdtInput / price
	qty = math.Round(qty/e.contract.TickSize) * e.contract.TickSize
	qty = math.Round(qty*1e8) / 1e8
	if qty <= 0 {
		return 0, fmt.Errorf("quantity rounds to zero at price %v", price)
	}
	return qty, nil
}

// pollFill chases the average fill price of a partially acknowledged
// entry order on a fixed 2s period until the order fills or the context
// is cancelled.
func (e *Engine) pollFill(ctx context.Context, tradeID string, orderID int64) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		res, err := e.exec.OrderStatus(ctx, e.contract, orderID)
		if err != nil {
			e.logf("order status check failed for %s: %v", e.contract.Symbol, err)
			continue
		}
		if !res.Filled() {
			continue
		}
		e.mu.Lock()
		for _, t := range e.trades {
			if t.ID == tradeID {
				t.EntryPrice = res.AvgPrice
				break
			}
		}
		e.mu.Unlock()
		return
	}
}

// setExitLevels derives stop-loss and take-profit from pivot key levels
// around the last completed candle, offset by one ATR, with the
// take-profit scaled by the configured risk-to-reward ratio.
func (e *Engine) setExitLevels(t *Trade) {
	atr := indicators.ATR(e.candles)
	if len(e.candles) < 2 {
		if t.Side == DirLong {
			t.StopLoss = t.EntryPrice - atr
			t.TakeProfit = t.EntryPrice + atr*e.riskToReward
		} else {
			t.StopLoss = t.EntryPrice + atr
			t.TakeProfit = t.EntryPrice - atr*e.riskToReward
		}
		return
	}

	closes := make([]float64, 0, len(e.candles)-1)
	for _, c := range e.candles[:len(e.candles)-1] {
		closes = append(closes, c.Close)
	}
	supports := tail(indicators.PivotLows(closes), 10)
	resistances := tail(indicators.PivotHighs(closes), 10)
	levels := append(append([]float64{}, supports...), resistances...)
	sort.Float64s(levels)

	ref := e.candles[len(e.candles)-2]
	if t.Side == DirLong {
		stop := math.NaN()
		for i := len(levels) - 1; i >= 0; i-- {
			if levels[i] < ref.Low {
				stop = levels[i]
				break
			}
		}
		if math.IsNaN(stop) {
			e.logf("no key level below %s %s low, falling back", e.contract.Symbol, e.timeframe)
			if len(levels) > 0 {
				stop = levels[0]
			} else {
				stop = ref.Low
			}
		}
		t.StopLoss = stop - atr
		if ref.Close < t.StopLoss {
			e.logf("stop loss above entry close for %s %s long", e.contract.Symbol, e.timeframe)
		}
		t.TakeProfit = ref.Close + (ref.Close-t.StopLoss)*e.riskToReward
		return
	}

	stop := math.NaN()
	for _, lv := range levels {
		if lv > ref.High {
			stop = lv
			break
		}
	}
	if math.IsNaN(stop) {
		e.logf("no key level above %s %s high, falling back", e.contract.Symbol, e.timeframe)
		if len(levels) > 0 {
			stop = levels[len(levels)-1]
		} else {
			stop = ref.High
		}
	}
	t.StopLoss = stop + atr
	if ref.Close > t.StopLoss {
		e.logf("stop loss below entry close for %s %s short", e.contract.Symbol, e.timeframe)
	}
	t.TakeProfit = ref.Close - (t.StopLoss-ref.Close)*e.riskToReward
}

// checkExit compares the latest close against the open trade's exit
// lines and places a market exit on trigger. A failed exit order keeps
// the trade open; the next qualifying tick retries.
func (e *Engine) checkExit(ctx context.Context) {
	price := e.candles[len(e.candles)-1].Close
	for _, t := range e.trades {
		if t.Status != TradeOpen || t.EntryPrice == 0 {
			continue
		}

		var triggered bool
		var reason string
		if t.Side == DirLong {
			if price <= t.StopLoss {
				triggered, reason = true, "stop loss"
			} else if price >= t.TakeProfit {
				triggered, reason = true, "take profit"
			}
		} else {
			if price >= t.StopLoss {
				triggered, reason = true, "stop loss"
			} else if price <= t.TakeProfit {
				triggered, reason = true, "take profit"
			}
		}
		if !triggered {
			continue
		}
		e.logf("%s hit for %s %s at %v", reason, e.contract.Symbol, e.timeframe, price)

		side := common.SideSell
		if t.Side == DirShort {
			side = common.SideBuy
		}
		if _, err := e.exec.PlaceExit(ctx, e.contract, side, t.Quantity, e.usdtInput); err != nil {
			e.logf("exit order failed on %s %s, will retry: %v", e.contract.Symbol, e.timeframe, err)
			continue
		}
		t.Status = TradeClosed
		t.StopLoss, t.TakeProfit = 0, 0
		e.open = false
		e.logf("exit order on %s %s placed", e.contract.Symbol, e.timeframe)
		e.bus.Publish(events.EventTradeClosed, *t)
	}
}

func (e *Engine) logf(format string, args ...any) {
	e.bus.Logf("strategy", format, args...)
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
