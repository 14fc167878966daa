package market

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"margin-trader/internal/events"
	"margin-trader/internal/strategy"
	"margin-trader/pkg/exchanges/common"
)

const reconnectBackoff = 2 * time.Second

// subscribeRequest is the wire frame for channel subscriptions.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Stream is the public market-data worker for one market. It subscribes
// to book-ticker and aggregate-trade channels for the whole contract
// set, pushes quotes into the board and trade ticks into the matching
// strategy engines, and redials forever on a fixed backoff.
type Stream struct {
	market   common.Market
	wsURL    string
	symbols  []string
	board    *QuoteBoard
	registry *strategy.Registry
	bus      *events.Bus
	dialer   *websocket.Dialer

	running atomic.Bool
	mu      sync.Mutex
	conn    *websocket.Conn
}

func NewStream(market common.Market, wsURL string, symbols []string, board *QuoteBoard, registry *strategy.Registry, bus *events.Bus) *Stream {
	return &Stream{
		market:   market,
		wsURL:    wsURL,
		symbols:  symbols,
		board:    board,
		registry: registry,
		bus:      bus,
		dialer:   websocket.DefaultDialer,
	}
}

// Start launches the stream worker.
func (s *Stream) Start(ctx context.Context) {
	s.running.Store(true)
	go s.run(ctx)
}

// Stop flags shutdown and closes the live connection.
func (s *Stream) Stop() {
	s.running.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Stream) run(ctx context.Context) {
	for s.running.Load() && ctx.Err() == nil {
		conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
		if err != nil {
			s.bus.Logf("market", "%s stream dial failed: %v", s.market, err)
			time.Sleep(reconnectBackoff)
			continue
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		if err := s.subscribe(conn); err != nil {
			s.bus.Logf("market", "%s subscribe failed: %v", s.market, err)
			conn.Close()
			time.Sleep(reconnectBackoff)
			continue
		}
		s.bus.Logf("market", "%s stream connected, %d symbols", s.market, len(s.symbols))

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if s.running.Load() {
					s.bus.Logf("market", "%s stream read failed: %v", s.market, err)
				}
				break
			}
			s.handle(ctx, msg)
		}
		conn.Close()
		if s.running.Load() {
			time.Sleep(reconnectBackoff)
		}
	}
}

// subscribe sends the channel subscriptions in two batches, book ticker
// first, with a per-connection incrementing request id.
func (s *Stream) subscribe(conn *websocket.Conn) error {
	reqID := 0
	for _, channel := range []string{"bookTicker", "aggTrade"} {
		params := make([]string, 0, len(s.symbols))
		for _, sym := range s.symbols {
			params = append(params, strings.ToLower(sym)+"@"+channel)
		}
		reqID++
		if err := conn.WriteJSON(subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: reqID}); err != nil {
			return err
		}
	}
	return nil
}

// handle classifies one inbound frame: subscription acks are dropped,
// book-ticker updates feed the quote board and PnL, aggregate trades
// drive the candle aggregation of every engine on the symbol.
func (s *Stream) handle(ctx context.Context, msg []byte) {
	if gjson.GetBytes(msg, "result").Exists() {
		return
	}

	eventType := gjson.GetBytes(msg, "e").String()
	symbol := gjson.GetBytes(msg, "s").String()
	switch {
	case eventType == "aggTrade":
		price := gjson.GetBytes(msg, "p").Float()
		size := gjson.GetBytes(msg, "q").Float()
		ts := gjson.GetBytes(msg, "T").Int()
		for _, eng := range s.registry.ForSymbol(s.market, symbol) {
			res := eng.ApplyTick(price, size, ts)
			eng.CheckTrade(ctx, res)
		}

	case eventType == "" && symbol != "":
		bid := gjson.GetBytes(msg, "b").Float()
		ask := gjson.GetBytes(msg, "a").Float()
		s.board.Set(symbol, bid, ask)
		s.registry.UpdatePnL(s.market, symbol, bid, ask)
		s.bus.Publish(events.EventQuote, events.QuoteUpdate{
			Market: string(s.market),
			Symbol: symbol,
			Bid:    bid,
			Ask:    ask,
		})
	}
}
