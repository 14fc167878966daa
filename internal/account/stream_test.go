package account

import (
	"context"
	"fmt"
	"testing"

	"margin-trader/internal/events"
	"margin-trader/pkg/exchanges/common"
)

type fakeKeyClient struct {
	created map[common.Market]int
	closed  map[common.Market][]string
}

func newFakeKeyClient() *fakeKeyClient {
	return &fakeKeyClient{created: map[common.Market]int{}, closed: map[common.Market][]string{}}
}

func (f *fakeKeyClient) CreateListenKey(_ context.Context, market common.Market) (string, error) {
	f.created[market]++
	return fmt.Sprintf("%s-key-%d", market, f.created[market]), nil
}

func (f *fakeKeyClient) CloseListenKey(_ context.Context, market common.Market, key string) error {
	f.closed[market] = append(f.closed[market], key)
	return nil
}

func TestRenewOneDeleteCreatePairPerMarket(t *testing.T) {
	client := newFakeKeyClient()
	s := NewStreams(client, events.NewBus(), "wss://example", NewTable(), NewTable())
	ctx := context.Background()

	// First invocation: nothing to delete yet.
	s.renew(ctx)
	for _, market := range []common.Market{common.MarketSpot, common.MarketMargin} {
		if client.created[market] != 1 {
			t.Errorf("%s: created = %d, want 1", market, client.created[market])
		}
		if len(client.closed[market]) != 0 {
			t.Errorf("%s: closed = %v, want none on first renewal", market, client.closed[market])
		}
	}

	// Second invocation: exactly one delete+create pair per market,
	// deleting the key issued last time.
	s.renew(ctx)
	for _, market := range []common.Market{common.MarketSpot, common.MarketMargin} {
		if client.created[market] != 2 {
			t.Errorf("%s: created = %d, want 2", market, client.created[market])
		}
		want := fmt.Sprintf("%s-key-1", market)
		if len(client.closed[market]) != 1 || client.closed[market][0] != want {
			t.Errorf("%s: closed = %v, want [%s]", market, client.closed[market], want)
		}
	}
}

func TestApplyAccountPosition(t *testing.T) {
	spot := NewTable()
	s := NewStreams(newFakeKeyClient(), events.NewBus(), "wss://example", spot, NewTable())

	msg := []byte(`{"e":"outboundAccountPosition","E":1,"u":1,"B":[` +
		`{"a":"USDT","f":"123.45","l":"6.78"},` +
		`{"a":"BTC","f":"0.5","l":"0"}]}`)
	s.apply(common.MarketSpot, msg)

	usdt, ok := spot.Get("USDT")
	if !ok || usdt.Free != 123.45 || usdt.Locked != 6.78 {
		t.Errorf("USDT entry = %+v, want free 123.45 locked 6.78", usdt)
	}
	if got := spot.Free("BTC"); got != 0.5 {
		t.Errorf("BTC free = %v, want 0.5", got)
	}

	// A later snapshot replaces the entry in place.
	s.apply(common.MarketSpot, []byte(`{"e":"outboundAccountPosition","B":[{"a":"USDT","f":"100","l":"0"}]}`))
	if got := spot.Free("USDT"); got != 100 {
		t.Errorf("USDT free after update = %v, want 100", got)
	}
}

func TestApplyIgnoresBalanceUpdate(t *testing.T) {
	spot := NewTable()
	s := NewStreams(newFakeKeyClient(), events.NewBus(), "wss://example", spot, NewTable())

	s.apply(common.MarketSpot, []byte(`{"e":"balanceUpdate","a":"USDT","d":"-25.0"}`))
	if _, ok := spot.Get("USDT"); ok {
		t.Error("balanceUpdate mutated the table")
	}
}

func TestTableSnapshotSorted(t *testing.T) {
	table := NewTable()
	table.Upsert("USDT", 10, 0)
	table.Upsert("BTC", 1, 0)
	table.Upsert("ETH", 2, 1)

	snap := table.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	for i, want := range []string{"BTC", "ETH", "USDT"} {
		if snap[i].Asset != want {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].Asset, want)
		}
	}
}
