package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Transfer directions on /sapi/v1/margin/transfer.
const (
	TransferSpotToMargin = 1
	TransferMarginToSpot = 2
)

// Transfer moves an asset between the spot and margin wallets and
// returns the exchange transaction id.
func (c *Client) Transfer(ctx context.Context, asset string, amount float64, direction int) (int64, error) {
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("amount", formatFloat(amount))
	params.Set("type", strconv.Itoa(direction))

	body, err := c.do(ctx, http.MethodPost, "/sapi/v1/margin/transfer", params, true)
	if err != nil {
		return 0, err
	}
	return decodeTranID(body, "transfer")
}

// Borrow takes a margin loan of the given asset.
func (c *Client) Borrow(ctx context.Context, asset string, amount float64) (int64, error) {
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("amount", formatFloat(amount))

	body, err := c.do(ctx, http.MethodPost, "/sapi/v1/margin/loan", params, true)
	if err != nil {
		return 0, err
	}
	return decodeTranID(body, "loan")
}

// Repay pays back a margin loan of the given asset.
func (c *Client) Repay(ctx context.Context, asset string, amount float64) (int64, error) {
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("amount", formatFloat(amount))

	body, err := c.do(ctx, http.MethodPost, "/sapi/v1/margin/repay", params, true)
	if err != nil {
		return 0, err
	}
	return decodeTranID(body, "repay")
}

func decodeTranID(body []byte, op string) (int64, error) {
	var resp struct {
		TranID int64 `json:"tranId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode %s response: %w", op, err)
	}
	return resp.TranID, nil
}
