package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"margin-trader/pkg/exchanges/common"
)

// Config holds Binance credentials and endpoints.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Timeout   time.Duration
}

// Client is a Binance spot+margin REST client. Every request is paced by
// a token bucket; signed requests carry a millisecond timestamp and an
// HMAC-SHA256 signature over the url-encoded parameter set.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	weights    *common.WeightTracker
	timeSync   *common.TimeSync
}

// StreamBase returns the public websocket base URL.
func StreamBase(testnet bool) string {
	if testnet {
		return "wss://testnet.binance.vision/ws"
	}
	return "wss://stream.binance.com:9443/ws"
}

// New builds a client. Testnet toggles the REST host.
func New(cfg Config) *Client {
	base := "https://api.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binance.vision"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// 1200 weight/min for spot; pace well under it.
		limiter: rate.NewLimiter(rate.Limit(15), 30),
		weights: common.NewWeightTracker(1200, time.Minute),
	}
	c.timeSync = common.NewTimeSync(c.GetServerTime)
	return c
}

// SyncTime starts the background server-time synchronization.
func (c *Client) SyncTime(ctx context.Context) { c.timeSync.Start(ctx) }

// timestamp returns the signed-request timestamp in epoch ms, adjusted
// by the server offset when one is known.
func (c *Client) timestamp() int64 {
	return c.timeSync.Now()
}

// do performs one request. For signed calls the params are extended with
// a timestamp and signature before encoding. Transport failures and
// non-2xx responses come back as distinguished error types; there is no
// retry at this layer.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signedReq bool) ([]byte, error) {
	op := method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &common.TransportError{Op: op, Err: err}
	}

	if params == nil {
		params = url.Values{}
	}
	if signedReq {
		params.Set("timestamp", strconv.FormatInt(c.timestamp(), 10))
		params.Set("signature", sign(params.Encode(), c.cfg.APISecret))
	}

	var (
		req *http.Request
		err error
	)
	encoded := params.Encode()
	endpoint := c.baseURL + path
	switch method {
	case http.MethodPost:
		// Binance accepts signed params as a form body on POST.
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		if encoded != "" {
			endpoint += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return nil, &common.TransportError{Op: op, Err: err}
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	c.weights.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &common.TransportError{Op: op, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &common.APIError{Op: op, StatusCode: res.StatusCode, Body: string(body)}
	}
	return body, nil
}

// sign computes the hex HMAC-SHA256 digest of the encoded query string.
// The same ordered parameter set with the same secret always yields the
// same digest.
func sign(payload, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
