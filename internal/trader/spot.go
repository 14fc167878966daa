package trader

import (
	"context"

	"margin-trader/pkg/exchanges/binance"
	"margin-trader/pkg/exchanges/common"
)

// orderAPI is the slice of the exchange client spot execution needs.
type orderAPI interface {
	PlaceOrder(ctx context.Context, req binance.OrderRequest) (*common.OrderResult, error)
	GetOrder(ctx context.Context, market common.Market, symbol string, orderID int64) (*common.OrderResult, error)
}

// SpotExecutor places plain spot market orders. No fund movement is
// needed on spot, so entries and exits are single calls.
type SpotExecutor struct {
	api orderAPI
}

func NewSpotExecutor(api orderAPI) *SpotExecutor {
	return &SpotExecutor{api: api}
}

func (s *SpotExecutor) PlaceEntry(ctx context.Context, c common.Contract, side common.Side, qty, _ float64) (common.OrderResult, error) {
	return s.place(ctx, c, side, qty)
}

func (s *SpotExecutor) PlaceExit(ctx context.Context, c common.Contract, side common.Side, qty, _ float64) (common.OrderResult, error) {
	return s.place(ctx, c, side, qty)
}

func (s *SpotExecutor) OrderStatus(ctx context.Context, c common.Contract, orderID int64) (common.OrderResult, error) {
	res, err := s.api.GetOrder(ctx, common.MarketSpot, c.Symbol, orderID)
	if err != nil {
		return common.OrderResult{}, err
	}
	return *res, nil
}

func (s *SpotExecutor) place(ctx context.Context, c common.Contract, side common.Side, qty float64) (common.OrderResult, error) {
	res, err := s.api.PlaceOrder(ctx, binance.OrderRequest{
		Market:   common.MarketSpot,
		Symbol:   c.Symbol,
		Side:     side,
		Type:     "MARKET",
		Quantity: qty,
	})
	if err != nil {
		return common.OrderResult{}, err
	}
	return *res, nil
}
