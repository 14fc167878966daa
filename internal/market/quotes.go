// Package market runs the per-market public data streams: best bid/ask
// quotes into a shared board and aggregate trades into the strategy
// engines.
package market

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

const numShards = 16

// Quote is the latest best bid/ask for a symbol.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	UpdatedAt time.Time
}

// QuoteBoard is a sharded symbol-to-quote table. The stream worker
// writes every book-ticker update into it; the control surface and exit
// logic read it from other goroutines.
type QuoteBoard struct {
	shards [numShards]*quoteShard
}

type quoteShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

func NewQuoteBoard() *QuoteBoard {
	b := &QuoteBoard{}
	for i := 0; i < numShards; i++ {
		b.shards[i] = &quoteShard{items: make(map[string]Quote)}
	}
	return b
}

func (b *QuoteBoard) shard(symbol string) *quoteShard {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return b.shards[h.Sum32()%numShards]
}

// Set stores the latest quote for a symbol.
func (b *QuoteBoard) Set(symbol string, bid, ask float64) {
	s := b.shard(symbol)
	s.mu.Lock()
	s.items[symbol] = Quote{Symbol: symbol, Bid: bid, Ask: ask, UpdatedAt: time.Now()}
	s.mu.Unlock()
}

// Get retrieves the quote for a symbol.
func (b *QuoteBoard) Get(symbol string) (Quote, bool) {
	s := b.shard(symbol)
	s.mu.RLock()
	q, ok := s.items[symbol]
	s.mu.RUnlock()
	return q, ok
}

// Snapshot returns all quotes sorted by symbol.
func (b *QuoteBoard) Snapshot() []Quote {
	var out []Quote
	for _, s := range b.shards {
		s.mu.RLock()
		for _, q := range s.items {
			out = append(out, q)
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
