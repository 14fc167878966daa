package account

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"margin-trader/internal/events"
	"margin-trader/pkg/exchanges/common"
)

// renewInterval is how often listen keys are replaced. The exchange
// expires idle keys well after this, so renewal never races expiry.
const renewInterval = 45 * time.Minute

const reconnectBackoff = 2 * time.Second

// ListenKeyClient is the REST slice needed for the key lifecycle.
type ListenKeyClient interface {
	CreateListenKey(ctx context.Context, market common.Market) (string, error)
	CloseListenKey(ctx context.Context, market common.Market, listenKey string) error
}

// Streams runs the spot and margin user-data connections. Each market
// gets an independent websocket fed by its own listen key; a single
// periodic task renews both keys with one delete+create pair per market
// and forces the connections onto the new keys.
type Streams struct {
	client ListenKeyClient
	bus    *events.Bus
	wsBase string
	tables map[common.Market]*Table
	dialer *websocket.Dialer

	running atomic.Bool
	mu      sync.Mutex
	keys    map[common.Market]string
	conns   map[common.Market]*websocket.Conn
}

func NewStreams(client ListenKeyClient, bus *events.Bus, wsBase string, spot, margin *Table) *Streams {
	return &Streams{
		client: client,
		bus:    bus,
		wsBase: wsBase,
		tables: map[common.Market]*Table{
			common.MarketSpot:   spot,
			common.MarketMargin: margin,
		},
		dialer: websocket.DefaultDialer,
		keys:   map[common.Market]string{},
		conns:  map[common.Market]*websocket.Conn{},
	}
}

// Start creates the initial listen keys, launches one reader per market
// and the renewal timer. It returns once the workers are running.
func (s *Streams) Start(ctx context.Context) {
	s.running.Store(true)
	s.renew(ctx)
	for market := range s.tables {
		go s.run(ctx, market)
	}
	go s.renewLoop(ctx)
}

// Stop flags shutdown and closes the active connections.
func (s *Streams) Stop() {
	s.running.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		if conn != nil {
			conn.Close()
		}
	}
}

func (s *Streams) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.running.Load() {
				return
			}
			s.renew(ctx)
		}
	}
}

// renew replaces the listen key of each market: delete the old key if
// one exists, create a new one, then drop the live connection so the
// reader redials onto the new key. Exactly one delete+create pair per
// market per invocation.
func (s *Streams) renew(ctx context.Context) {
	for market := range s.tables {
		s.mu.Lock()
		old := s.keys[market]
		s.mu.Unlock()

		if old != "" {
			if err := s.client.CloseListenKey(ctx, market, old); err != nil {
				s.bus.Logf("account", "%s listen key delete failed: %v", market, err)
			}
		}
		key, err := s.client.CreateListenKey(ctx, market)
		if err != nil {
			s.bus.Logf("account", "%s listen key create failed: %v", market, err)
			continue
		}

		s.mu.Lock()
		s.keys[market] = key
		conn := s.conns[market]
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		s.bus.Logf("account", "%s listen key renewed", market)
	}
}

// run dials the user-data endpoint for one market and pumps events into
// its balance table, redialing on a fixed backoff until stopped.
func (s *Streams) run(ctx context.Context, market common.Market) {
	for s.running.Load() && ctx.Err() == nil {
		s.mu.Lock()
		key := s.keys[market]
		s.mu.Unlock()
		if key == "" {
			time.Sleep(reconnectBackoff)
			continue
		}

		conn, _, err := s.dialer.DialContext(ctx, s.wsBase+"/"+key, nil)
		if err != nil {
			s.bus.Logf("account", "%s user data dial failed: %v", market, err)
			time.Sleep(reconnectBackoff)
			continue
		}
		s.mu.Lock()
		s.conns[market] = conn
		s.mu.Unlock()
		s.bus.Logf("account", "%s user data stream connected", market)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.apply(market, msg)
		}
		conn.Close()
		if s.running.Load() {
			time.Sleep(reconnectBackoff)
		}
	}
}

// apply folds one user-data event into the market's balance table.
// Asset deltas arrive as outboundAccountPosition snapshots per touched
// asset; balanceUpdate events are informational only.
func (s *Streams) apply(market common.Market, msg []byte) {
	switch gjson.GetBytes(msg, "e").String() {
	case "outboundAccountPosition":
		table := s.tables[market]
		for _, b := range gjson.GetBytes(msg, "B").Array() {
			asset := b.Get("a").String()
			if asset == "" {
				continue
			}
			table.Upsert(asset, b.Get("f").Float(), b.Get("l").Float())
		}
	case "balanceUpdate":
		// No state change: the position event that follows carries the
		// resulting balances.
	}
}
