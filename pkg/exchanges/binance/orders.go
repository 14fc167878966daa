package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"margin-trader/pkg/exchanges/common"
)

// OrderRequest captures an order intent for either market.
type OrderRequest struct {
	Market      common.Market
	Symbol      string
	Side        common.Side
	Type        string // MARKET, LIMIT
	Quantity    float64
	Price       float64 // required for LIMIT
	TimeInForce string  // required for LIMIT
}

func orderPath(market common.Market) string {
	if market == common.MarketMargin {
		return "/sapi/v1/margin/order"
	}
	return "/api/v3/order"
}

// PlaceOrder submits an order on the request's market. A generated
// client order id ties the exchange ack back to this call.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*common.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", strings.ToUpper(req.Type))
	params.Set("quantity", formatFloat(req.Quantity))
	params.Set("newClientOrderId", uuid.NewString())
	if req.Price > 0 {
		params.Set("price", formatFloat(req.Price))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}

	body, err := c.do(ctx, http.MethodPost, orderPath(req.Market), params, true)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

// CancelOrder cancels an open order by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, market common.Market, symbol string, orderID int64) (*common.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.do(ctx, http.MethodDelete, orderPath(market), params, true)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

// GetOrder fetches the current status of an order.
func (c *Client) GetOrder(ctx context.Context, market common.Market, symbol string, orderID int64) (*common.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.do(ctx, http.MethodGet, orderPath(market), params, true)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func decodeOrder(body []byte) (*common.OrderResult, error) {
	var resp struct {
		OrderID             int64  `json:"orderId"`
		ClientOrderID       string `json:"clientOrderId"`
		Status              string `json:"status"`
		Price               string `json:"price"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	avg := toFloat(resp.Price)
	// Market orders report price 0; derive the average from the fills.
	if avg == 0 {
		if qty := toFloat(resp.ExecutedQty); qty > 0 {
			avg = toFloat(resp.CummulativeQuoteQty) / qty
		}
	}

	return &common.OrderResult{
		OrderID:  resp.OrderID,
		ClientID: resp.ClientOrderID,
		Status:   mapStatus(resp.Status),
		AvgPrice: avg,
	}, nil
}

func mapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}
