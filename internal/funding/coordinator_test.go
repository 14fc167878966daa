package funding

import (
	"context"
	"testing"

	"margin-trader/internal/events"
	"margin-trader/pkg/exchanges/binance"
	"margin-trader/pkg/exchanges/common"
)

type transferCall struct {
	asset     string
	amount    float64
	direction int
}

type fakeAPI struct {
	failOrder    bool
	failBorrow   bool
	failRepay    bool
	failTransfer bool

	orders    []binance.OrderRequest
	transfers []transferCall
	borrows   []transferCall
	repays    []transferCall
}

func apiErr(op string) error {
	return &common.APIError{Op: op, StatusCode: 400, Body: "rejected"}
}

func (f *fakeAPI) PlaceOrder(_ context.Context, req binance.OrderRequest) (*common.OrderResult, error) {
	if f.failOrder {
		return nil, apiErr("order")
	}
	f.orders = append(f.orders, req)
	return &common.OrderResult{OrderID: 1, Status: common.StatusFilled, AvgPrice: 100}, nil
}

func (f *fakeAPI) GetOrder(context.Context, common.Market, string, int64) (*common.OrderResult, error) {
	return &common.OrderResult{OrderID: 1, Status: common.StatusFilled, AvgPrice: 100}, nil
}

func (f *fakeAPI) Transfer(_ context.Context, asset string, amount float64, direction int) (int64, error) {
	if f.failTransfer {
		return 0, apiErr("transfer")
	}
	f.transfers = append(f.transfers, transferCall{asset, amount, direction})
	return 7, nil
}

func (f *fakeAPI) Borrow(_ context.Context, asset string, amount float64) (int64, error) {
	if f.failBorrow {
		return 0, apiErr("loan")
	}
	f.borrows = append(f.borrows, transferCall{asset: asset, amount: amount})
	return 8, nil
}

func (f *fakeAPI) Repay(_ context.Context, asset string, amount float64) (int64, error) {
	if f.failRepay {
		return 0, apiErr("repay")
	}
	f.repays = append(f.repays, transferCall{asset: asset, amount: amount})
	return 9, nil
}

type fakeBalances map[string]float64

func (b fakeBalances) Free(asset string) float64 { return b[asset] }

type captureSink struct {
	incidents []Incident
}

func (s *captureSink) RecordIncident(_ context.Context, inc Incident) error {
	s.incidents = append(s.incidents, inc)
	return nil
}

var btc = common.NewContract("BTCUSDT", "BTC", "USDT", 6, common.MarketMargin)

func newTestCoordinator(api *fakeAPI, balances fakeBalances) (*Coordinator, *captureSink) {
	sink := &captureSink{}
	return NewCoordinator(api, events.NewBus(), balances, sink), sink
}

func TestEnterLongTransfersWithFeeBuffer(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCoordinator(api, fakeBalances{})

	res, err := c.PlaceEntry(context.Background(), btc, common.SideBuy, 0.5, 50)
	if err != nil {
		t.Fatalf("PlaceEntry: %v", err)
	}
	if !res.Filled() {
		t.Errorf("result not filled: %+v", res)
	}
	if len(api.transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(api.transfers))
	}
	tr := api.transfers[0]
	if tr.amount != 53 || tr.direction != binance.TransferSpotToMargin || tr.asset != "USDT" {
		t.Errorf("transfer = %+v, want 53 USDT spot to margin", tr)
	}
	if len(api.orders) != 1 || api.orders[0].Market != common.MarketMargin {
		t.Errorf("orders = %+v, want one margin order", api.orders)
	}
}

func TestEnterLongOrderFailureCompensates(t *testing.T) {
	api := &fakeAPI{failOrder: true}
	c, _ := newTestCoordinator(api, fakeBalances{})

	if _, err := c.PlaceEntry(context.Background(), btc, common.SideBuy, 0.5, 50); err == nil {
		t.Fatal("want error from failed order")
	}
	if len(api.transfers) != 2 {
		t.Fatalf("transfers = %d, want in and back", len(api.transfers))
	}
	back := api.transfers[1]
	if back.amount != 53 || back.direction != binance.TransferMarginToSpot {
		t.Errorf("compensation transfer = %+v, want 53 USDT back to spot", back)
	}
}

func TestEnterShortBorrowFailureLeavesFundsFlagged(t *testing.T) {
	api := &fakeAPI{failBorrow: true}
	c, sink := newTestCoordinator(api, fakeBalances{})

	if _, err := c.PlaceEntry(context.Background(), btc, common.SideSell, 0.5, 50); err == nil {
		t.Fatal("want error from failed borrow")
	}
	if len(api.orders) != 0 {
		t.Errorf("order placed despite failed borrow")
	}
	// No compensation transfer: funds stay on margin for the operator.
	if len(api.transfers) != 1 || api.transfers[0].direction != binance.TransferSpotToMargin {
		t.Errorf("transfers = %+v, want only the inbound transfer", api.transfers)
	}
	if len(sink.incidents) != 1 || sink.incidents[0].Step != "borrow" {
		t.Errorf("incidents = %+v, want one borrow incident", sink.incidents)
	}
}

func TestEnterShortOrderFailureRepaysAndReverses(t *testing.T) {
	api := &fakeAPI{failOrder: true}
	c, _ := newTestCoordinator(api, fakeBalances{"BTC": 1})

	if _, err := c.PlaceEntry(context.Background(), btc, common.SideSell, 0.5, 50); err == nil {
		t.Fatal("want error from failed order")
	}
	if len(api.borrows) != 1 || api.borrows[0].amount != 0.5 {
		t.Fatalf("borrows = %+v, want 0.5 BTC", api.borrows)
	}
	if len(api.repays) != 1 || api.repays[0].amount != 0.5 {
		t.Fatalf("repays = %+v, want the borrowed 0.5 BTC", api.repays)
	}
	if len(api.transfers) != 2 || api.transfers[1].direction != binance.TransferMarginToSpot {
		t.Fatalf("transfers = %+v, want inbound then reversal", api.transfers)
	}
}

func TestExitLongClampsToFreeBalance(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCoordinator(api, fakeBalances{"BTC": 0.4999999999})

	res, err := c.PlaceExit(context.Background(), btc, common.SideSell, 0.5, 50)
	if err != nil {
		t.Fatalf("PlaceExit: %v", err)
	}
	if !res.Filled() {
		t.Errorf("result not filled: %+v", res)
	}
	if got := api.orders[0].Quantity; got != 0.499999 {
		t.Errorf("sell quantity = %v, want free balance truncated to 6 decimals", got)
	}
	if len(api.transfers) != 1 || api.transfers[0].amount != 50 || api.transfers[0].direction != binance.TransferMarginToSpot {
		t.Errorf("transfers = %+v, want whole-unit proceeds back to spot", api.transfers)
	}
}

func TestExitShortRepayFailureKeepsResult(t *testing.T) {
	api := &fakeAPI{failRepay: true}
	c, sink := newTestCoordinator(api, fakeBalances{"BTC": 1})

	res, err := c.PlaceExit(context.Background(), btc, common.SideBuy, 0.5, 50)
	if err != nil {
		t.Fatalf("PlaceExit: %v", err)
	}
	if !res.Filled() {
		t.Errorf("order result lost on repay failure: %+v", res)
	}
	if len(sink.incidents) != 1 || sink.incidents[0].Step != "exit-repay" {
		t.Errorf("incidents = %+v, want one exit-repay incident", sink.incidents)
	}
	// The reversal transfer is skipped while the debt is unresolved.
	if len(api.transfers) != 0 {
		t.Errorf("transfers = %+v, want none", api.transfers)
	}
}

func TestExitShortOrderFailureAborts(t *testing.T) {
	api := &fakeAPI{failOrder: true}
	c, _ := newTestCoordinator(api, fakeBalances{"BTC": 1})

	if _, err := c.PlaceExit(context.Background(), btc, common.SideBuy, 0.5, 50); err == nil {
		t.Fatal("want error from failed order")
	}
	if len(api.repays) != 0 || len(api.transfers) != 0 {
		t.Errorf("compensation ran despite aborted exit: repays=%d transfers=%d", len(api.repays), len(api.transfers))
	}
}
