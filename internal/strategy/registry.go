package strategy

import (
	"fmt"
	"sort"
	"sync"

	"margin-trader/pkg/exchanges/common"
)

// Registry holds the active engines per market. The control surface
// mutates it while the stream workers iterate, so every read hands out
// a snapshot.
type Registry struct {
	mu      sync.RWMutex
	engines map[common.Market]map[string]*Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: map[common.Market]map[string]*Engine{}}
}

// Add registers an engine under its market. Duplicate activations are
// rejected.
func (r *Registry) Add(market common.Market, e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.engines[market]
	if !ok {
		byID = map[string]*Engine{}
		r.engines[market] = byID
	}
	if _, exists := byID[e.ID()]; exists {
		return fmt.Errorf("strategy %s already active on %s", e.ID(), market)
	}
	byID[e.ID()] = e
	return nil
}

// Remove deactivates an engine and reports whether it was present.
func (r *Registry) Remove(market common.Market, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.engines[market]
	if !ok {
		return false
	}
	if _, exists := byID[id]; !exists {
		return false
	}
	delete(byID, id)
	return true
}

// Get looks up one activation.
func (r *Registry) Get(market common.Market, id string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[market][id]
	return e, ok
}

// ForSymbol returns the engines subscribed to a symbol on one market.
func (r *Registry) ForSymbol(market common.Market, symbol string) []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Engine
	for _, e := range r.engines[market] {
		if e.Contract().Symbol == symbol {
			out = append(out, e)
		}
	}
	return out
}

// All returns every active engine across markets, ordered by id for
// stable listings.
func (r *Registry) All() []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Engine
	for _, byID := range r.engines {
		for _, e := range byID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// UpdatePnL pushes a book-ticker quote into every engine trading the
// symbol on that market.
func (r *Registry) UpdatePnL(market common.Market, symbol string, bid, ask float64) {
	for _, e := range r.ForSymbol(market, symbol) {
		e.UpdatePnL(bid, ask)
	}
}
