package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"margin-trader/pkg/exchanges/common"
)

// Spot and margin user-data streams live on separate endpoint families.
func listenKeyPath(market common.Market) string {
	if market == common.MarketMargin {
		return "/sapi/v1/userDataStream"
	}
	return "/api/v3/userDataStream"
}

// CreateListenKey opens a new user-data stream session for the market
// and returns its listen key. Listen-key endpoints authenticate with the
// API-key header only; no signature is required.
func (c *Client) CreateListenKey(ctx context.Context, market common.Market) (string, error) {
	body, err := c.do(ctx, http.MethodPost, listenKeyPath(market), nil, false)
	if err != nil {
		return "", err
	}
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode listen key: %w", err)
	}
	return resp.ListenKey, nil
}

// CloseListenKey invalidates a listen key.
func (c *Client) CloseListenKey(ctx context.Context, market common.Market, listenKey string) error {
	params := url.Values{}
	params.Set("listenKey", listenKey)
	_, err := c.do(ctx, http.MethodDelete, listenKeyPath(market), params, false)
	return err
}
