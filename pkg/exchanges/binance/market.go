package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"margin-trader/pkg/exchanges/common"
)

// GetServerTime returns the exchange clock in epoch ms.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/time", nil, false)
	if err != nil {
		return 0, err
	}
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}
	return resp.ServerTime, nil
}

// GetContracts loads exchange info for the given symbols and keeps only
// those eligible on the requested market (SPOT or MARGIN permission).
func (c *Client) GetContracts(ctx context.Context, market common.Market, symbols []string) (map[string]common.Contract, error) {
	params := url.Values{}
	if len(symbols) > 0 {
		list, err := json.Marshal(symbols)
		if err != nil {
			return nil, err
		}
		params.Set("symbols", string(list))
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbols []struct {
			Symbol             string   `json:"symbol"`
			BaseAsset          string   `json:"baseAsset"`
			QuoteAsset         string   `json:"quoteAsset"`
			BaseAssetPrecision int      `json:"baseAssetPrecision"`
			Permissions        []string `json:"permissions"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	contracts := make(map[string]common.Contract)
	for _, s := range resp.Symbols {
		for _, perm := range s.Permissions {
			if perm == string(market) {
				contracts[s.Symbol] = common.NewContract(s.Symbol, s.BaseAsset, s.QuoteAsset, s.BaseAssetPrecision, market)
				break
			}
		}
	}
	return contracts, nil
}

// GetBookTicker returns the current best bid/ask for a symbol.
func (c *Client) GetBookTicker(ctx context.Context, symbol string) (bid, ask float64, err error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(ctx, http.MethodGet, "/api/v3/ticker/bookTicker", params, false)
	if err != nil {
		return 0, 0, err
	}

	var resp struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, 0, fmt.Errorf("decode book ticker: %w", err)
	}
	return toFloat(resp.BidPrice), toFloat(resp.AskPrice), nil
}

// GetKlines fetches historical candles. Klines are uniquely identified
// by their open time; the newest entry may still be in formation.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]common.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/api/v3/klines", params, false)
	if err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]common.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		candles = append(candles, common.Candle{
			OpenTime: openTime,
			Open:     jsonFloat(row[1]),
			High:     jsonFloat(row[2]),
			Low:      jsonFloat(row[3]),
			Close:    jsonFloat(row[4]),
			Volume:   jsonFloat(row[5]),
		})
	}
	return candles, nil
}

func jsonFloat(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return toFloat(s)
	}
	var f float64
	_ = json.Unmarshal(raw, &f)
	return f
}

func toFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
