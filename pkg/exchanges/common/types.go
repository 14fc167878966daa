package common

import (
	"fmt"
	"math"
)

// Market distinguishes the spot and margin venues. Each market keeps its
// own contract set, balance table and quote table.
type Market string

const (
	MarketSpot   Market = "SPOT"
	MarketMargin Market = "MARGIN"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "new"
	StatusPartial  OrderStatus = "partially_filled"
	StatusFilled   OrderStatus = "filled"
	StatusCanceled OrderStatus = "canceled"
	StatusRejected OrderStatus = "rejected"
	StatusExpired  OrderStatus = "expired"
	StatusUnknown  OrderStatus = "unknown"
)

// Contract describes a tradable symbol on one market. Immutable once
// loaded from /exchangeInfo.
type Contract struct {
	Symbol             string
	BaseAsset          string
	QuoteAsset         string
	BaseAssetPrecision int
	TickSize           float64 // 10^-BaseAssetPrecision
	Market             Market
}

// NewContract derives the tick size from the base-asset precision.
func NewContract(symbol, base, quote string, precision int, market Market) Contract {
	return Contract{
		Symbol:             symbol,
		BaseAsset:          base,
		QuoteAsset:         quote,
		BaseAssetPrecision: precision,
		TickSize:           math.Pow(10, -float64(precision)),
		Market:             market,
	}
}

// Candle is one OHLCV bar. OpenTime is the period-open in exchange epoch
// milliseconds. Within a sequence the last candle stays mutable until a
// period boundary is crossed.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// OrderResult is the normalized exchange ack for an order.
type OrderResult struct {
	OrderID  int64
	ClientID string
	Status   OrderStatus
	AvgPrice float64
}

// Filled reports whether the order is fully filled.
func (r OrderResult) Filled() bool { return r.Status == StatusFilled }

// TransportError wraps connect/timeout failures. The operation produced
// no result; callers must treat it as "not confirmed", not "not applied".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx exchange response.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
