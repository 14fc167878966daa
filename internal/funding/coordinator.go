// Package funding orchestrates the fund movements around margin
// orders: spot-to-margin transfers for entries, asset borrow for
// shorts, and repay/transfer-back compensation when a step fails part
// way through.
package funding

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"margin-trader/internal/events"
	"margin-trader/internal/strategy"
	"margin-trader/pkg/exchanges/binance"
	"margin-trader/pkg/exchanges/common"
)

// feeBuffer is the extra USDT moved to margin alongside the position
// size to cover trading fees.
const feeBuffer = 3

// marginAPI is the slice of the exchange client the coordinator needs.
type marginAPI interface {
	PlaceOrder(ctx context.Context, req binance.OrderRequest) (*common.OrderResult, error)
	GetOrder(ctx context.Context, market common.Market, symbol string, orderID int64) (*common.OrderResult, error)
	Transfer(ctx context.Context, asset string, amount float64, direction int) (int64, error)
	Borrow(ctx context.Context, asset string, amount float64) (int64, error)
	Repay(ctx context.Context, asset string, amount float64) (int64, error)
}

// Incident records a compensation failure that left funds or debt on
// the margin account. Published on the bus and handed to the sink for
// persistence; resolution is manual.
type Incident struct {
	Symbol string
	Step   string
	Detail string
}

// IncidentSink persists incidents. Optional.
type IncidentSink interface {
	RecordIncident(ctx context.Context, inc Incident) error
}

// Coordinator executes the margin entry/exit sagas. It implements
// strategy.Executor; the per-step compensation rules are fixed:
//
//	long entry:  transfer in, order, transfer back on order failure
//	short entry: transfer in, borrow, order, repay and transfer back
//	             on order failure
//	long exit:   order (clamped to free balance), transfer proceeds back
//	short exit:  order, repay, transfer back
//
// A failed compensation never fails the saga result that is already
// settled; it raises an Incident instead.
type Coordinator struct {
	api      marginAPI
	bus      *events.Bus
	balances strategy.BalanceSource // margin balance table
	sink     IncidentSink
}

func NewCoordinator(api marginAPI, bus *events.Bus, balances strategy.BalanceSource, sink IncidentSink) *Coordinator {
	return &Coordinator{api: api, bus: bus, balances: balances, sink: sink}
}

func (c *Coordinator) PlaceEntry(ctx context.Context, contract common.Contract, side common.Side, qty, usdtInput float64) (common.OrderResult, error) {
	if side == common.SideBuy {
		return c.enterLong(ctx, contract, qty, usdtInput)
	}
	return c.enterShort(ctx, contract, qty, usdtInput)
}

func (c *Coordinator) PlaceExit(ctx context.Context, contract common.Contract, side common.Side, qty, usdtInput float64) (common.OrderResult, error) {
	if side == common.SideSell {
		return c.exitLong(ctx, contract, qty, usdtInput)
	}
	return c.exitShort(ctx, contract, qty, usdtInput)
}

func (c *Coordinator) OrderStatus(ctx context.Context, contract common.Contract, orderID int64) (common.OrderResult, error) {
	res, err := c.api.GetOrder(ctx, common.MarketMargin, contract.Symbol, orderID)
	if err != nil {
		return common.OrderResult{}, err
	}
	return *res, nil
}

func (c *Coordinator) enterLong(ctx context.Context, contract common.Contract, qty, usdtInput float64) (common.OrderResult, error) {
	total := usdtInput + feeBuffer
	if _, err := c.api.Transfer(ctx, contract.QuoteAsset, total, binance.TransferSpotToMargin); err != nil {
		return common.OrderResult{}, fmt.Errorf("entry transfer: %w", err)
	}

	res, err := c.placeMarket(ctx, contract, common.SideBuy, qty)
	if err != nil {
		// Compensate: move the funds back to spot.
		if _, terr := c.api.Transfer(ctx, contract.QuoteAsset, total, binance.TransferMarginToSpot); terr != nil {
			c.raise(ctx, contract.Symbol, "entry-compensation",
				fmt.Sprintf("%.2f %s stranded on margin after failed buy: %v", total, contract.QuoteAsset, terr))
		}
		return common.OrderResult{}, err
	}
	return res, nil
}

func (c *Coordinator) enterShort(ctx context.Context, contract common.Contract, qty, usdtInput float64) (common.OrderResult, error) {
	total := usdtInput + feeBuffer
	if _, err := c.api.Transfer(ctx, contract.QuoteAsset, total, binance.TransferSpotToMargin); err != nil {
		return common.OrderResult{}, fmt.Errorf("entry transfer: %w", err)
	}

	if _, err := c.api.Borrow(ctx, contract.BaseAsset, qty); err != nil {
		// No compensation transfer here: the funds stay on margin so a
		// later borrow attempt can reuse them, but an operator has to
		// decide.
		c.raise(ctx, contract.Symbol, "borrow",
			fmt.Sprintf("borrow of %v %s failed, %.2f %s left on margin", qty, contract.BaseAsset, total, contract.QuoteAsset))
		return common.OrderResult{}, fmt.Errorf("borrow: %w", err)
	}

	res, err := c.placeMarket(ctx, contract, common.SideSell, qty)
	if err != nil {
		if _, rerr := c.repayClamped(ctx, contract.BaseAsset, qty); rerr != nil {
			c.raise(ctx, contract.Symbol, "entry-repay",
				fmt.Sprintf("repay of %v %s failed after failed sell: %v", qty, contract.BaseAsset, rerr))
		}
		if _, terr := c.api.Transfer(ctx, contract.QuoteAsset, total, binance.TransferMarginToSpot); terr != nil {
			c.raise(ctx, contract.Symbol, "entry-compensation",
				fmt.Sprintf("%.2f %s stranded on margin after failed sell: %v", total, contract.QuoteAsset, terr))
		}
		return common.OrderResult{}, err
	}
	return res, nil
}

// exitLong sells the position back. The quantity is clamped to the free
// margin balance and truncated to the contract precision so rounding
// dust never rejects the close.
func (c *Coordinator) exitLong(ctx context.Context, contract common.Contract, qty, usdtInput float64) (common.OrderResult, error) {
	if free := c.balances.Free(contract.BaseAsset); free < qty {
		qty = free
	}
	qty = truncate(qty, contract.BaseAssetPrecision)
	if qty <= 0 {
		return common.OrderResult{}, fmt.Errorf("no free %s to sell", contract.BaseAsset)
	}

	res, err := c.placeMarket(ctx, contract, common.SideSell, qty)
	if err != nil {
		return common.OrderResult{}, err
	}
	if _, terr := c.api.Transfer(ctx, contract.QuoteAsset, math.Trunc(usdtInput), binance.TransferMarginToSpot); terr != nil {
		c.raise(ctx, contract.Symbol, "exit-transfer",
			fmt.Sprintf("proceeds of %s sale stuck on margin: %v", contract.Symbol, terr))
	}
	return res, nil
}

// exitShort buys the borrowed asset back, repays the loan and returns
// the remaining quote funds to spot. Once the buy settles, repay and
// transfer failures keep the order result and raise incidents.
func (c *Coordinator) exitShort(ctx context.Context, contract common.Contract, qty, usdtInput float64) (common.OrderResult, error) {
	res, err := c.placeMarket(ctx, contract, common.SideBuy, qty)
	if err != nil {
		return common.OrderResult{}, err
	}

	if _, rerr := c.repayClamped(ctx, contract.BaseAsset, qty); rerr != nil {
		c.raise(ctx, contract.Symbol, "exit-repay",
			fmt.Sprintf("repay of %v %s failed, debt remains: %v", qty, contract.BaseAsset, rerr))
		return res, nil
	}
	if _, terr := c.api.Transfer(ctx, contract.QuoteAsset, math.Trunc(usdtInput), binance.TransferMarginToSpot); terr != nil {
		c.raise(ctx, contract.Symbol, "exit-transfer",
			fmt.Sprintf("transfer back to spot failed after covering %s: %v", contract.Symbol, terr))
	}
	return res, nil
}

// repayClamped repays at most the free margin balance of the asset.
func (c *Coordinator) repayClamped(ctx context.Context, asset string, amount float64) (int64, error) {
	if free := c.balances.Free(asset); free < amount {
		amount = free
	}
	return c.api.Repay(ctx, asset, amount)
}

func (c *Coordinator) placeMarket(ctx context.Context, contract common.Contract, side common.Side, qty float64) (common.OrderResult, error) {
	res, err := c.api.PlaceOrder(ctx, binance.OrderRequest{
		Market:   common.MarketMargin,
		Symbol:   contract.Symbol,
		Side:     side,
		Type:     "MARKET",
		Quantity: qty,
	})
	if err != nil {
		return common.OrderResult{}, err
	}
	return *res, nil
}

// raise escalates a compensation failure. The process keeps running;
// the condition needs an operator.
func (c *Coordinator) raise(ctx context.Context, symbol, step, detail string) {
	inc := Incident{Symbol: symbol, Step: step, Detail: detail}
	c.bus.Logf("funding", "MANUAL INTERVENTION REQUIRED: %s %s: %s", symbol, step, detail)
	c.bus.Publish(events.EventSagaIncident, inc)
	if c.sink != nil {
		if err := c.sink.RecordIncident(ctx, inc); err != nil {
			c.bus.Logf("funding", "incident not persisted: %v", err)
		}
	}
}

func truncate(v float64, precision int) float64 {
	return decimal.NewFromFloat(v).Truncate(int32(precision)).InexactFloat64()
}
