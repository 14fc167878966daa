package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"margin-trader/pkg/exchanges/common"
)

func TestSignDeterminism(t *testing.T) {
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("side", "BUY")
	params.Set("quantity", "0.001")
	params.Set("timestamp", "1700000000000")

	first := sign(params.Encode(), "secret")
	second := sign(params.Encode(), "secret")
	if first != second {
		t.Fatalf("same params signed twice gave %s and %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}

	params.Set("quantity", "0.002")
	changed := sign(params.Encode(), "secret")
	if changed == first {
		t.Fatal("changing a parameter value did not change the digest")
	}

	otherSecret := sign(params.Encode(), "other")
	if otherSecret == changed {
		t.Fatal("changing the secret did not change the digest")
	}
}

func TestSignKnownVector(t *testing.T) {
	// Vector from the Binance API docs signature example.
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"
	if got := sign(payload, secret); got != want {
		t.Fatalf("sign() = %s, want %s", got, want)
	}
}

func TestDoClassifiesProtocolFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "key", APISecret: "secret"})
	c.baseURL = srv.URL

	_, err := c.do(context.Background(), http.MethodGet, "/api/v3/ticker/bookTicker", nil, false)
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
}

func TestDoClassifiesTransportFailure(t *testing.T) {
	c := New(Config{APIKey: "key", APISecret: "secret"})
	c.baseURL = "http://127.0.0.1:1" // nothing listens here

	_, err := c.do(context.Background(), http.MethodGet, "/api/v3/time", nil, false)
	var transportErr *common.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestDoSignsRequest(t *testing.T) {
	var gotQuery url.Values
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotKey = r.Header.Get("X-MBX-APIKEY")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "key", APISecret: "secret"})
	c.baseURL = srv.URL

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	if _, err := c.do(context.Background(), http.MethodGet, "/api/v3/order", params, true); err != nil {
		t.Fatalf("do: %v", err)
	}

	if gotKey != "key" {
		t.Fatalf("API key header = %q", gotKey)
	}
	if gotQuery.Get("timestamp") == "" {
		t.Fatal("signed request missing timestamp")
	}
	if gotQuery.Get("signature") == "" {
		t.Fatal("signed request missing signature")
	}
}
