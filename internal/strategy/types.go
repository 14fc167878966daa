package strategy

import (
	"context"
	"time"

	"margin-trader/pkg/exchanges/common"
)

// Signal is the outcome of one evaluator pass over the candle history.
type Signal int

const (
	SignalNone  Signal = 0
	SignalLong  Signal = 1
	SignalShort Signal = -1
)

// TickResult classifies what a trade tick did to the candle sequence.
type TickResult string

const (
	TickSameCandle TickResult = "same_candle"
	TickNewCandle  TickResult = "new_candle"
)

// Direction is the position side of a trade.
type Direction string

const (
	DirLong  Direction = "long"
	DirShort Direction = "short"
)

// Evaluator is a pure signal algorithm over the candle history. The
// last candle is still forming, so evaluators read the second-to-last
// one as "last completed". EveryTick reports whether the evaluator
// wants every tick or only period boundaries.
type Evaluator interface {
	Name() string
	Evaluate(candles []common.Candle) Signal
	EveryTick() bool
}

// Executor places the orders an engine decides on. The spot
// implementation is a thin order call; the margin one runs the
// transfer/borrow/repay saga around it. usdtInput is the quote amount
// backing the position, used by margin to size transfers.
type Executor interface {
	PlaceEntry(ctx context.Context, c common.Contract, side common.Side, qty, usdtInput float64) (common.OrderResult, error)
	PlaceExit(ctx context.Context, c common.Contract, side common.Side, qty, usdtInput float64) (common.OrderResult, error)
	OrderStatus(ctx context.Context, c common.Contract, orderID int64) (common.OrderResult, error)
}

// BalanceSource exposes the free amount of an asset for sizing.
type BalanceSource interface {
	Free(asset string) float64
}

// Trade is one position record. An engine keeps its full trade history
// but holds at most one trade with StatusOpen at a time.
type Trade struct {
	ID           string
	OpenTime     time.Time
	Market       common.Market
	Symbol       string
	Strategy     string
	Side         Direction
	EntryPrice   float64
	Status       string
	Quantity     float64
	PnL          float64
	StopLoss     float64
	TakeProfit   float64
	EntryOrderID int64
}

const (
	TradeOpen   = "open"
	TradeClosed = "closed"
)
