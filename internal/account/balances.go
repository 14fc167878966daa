// Package account maintains the live balance view: one table per
// market, fed by the user-data websocket streams.
package account

import (
	"sort"
	"sync"
)

// Entry is the balance of one asset.
type Entry struct {
	Asset  string
	Free   float64
	Locked float64
}

// Table is a concurrency-safe balance table for one market. The stream
// worker writes it; strategy sizing and the funding coordinator read it
// from other goroutines.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewTable() *Table {
	return &Table{entries: map[string]Entry{}}
}

// Upsert creates or replaces the entry for an asset.
func (t *Table) Upsert(asset string, free, locked float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[asset] = Entry{Asset: asset, Free: free, Locked: locked}
}

// Get returns the entry for an asset.
func (t *Table) Get(asset string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[asset]
	return e, ok
}

// Free returns the free amount of an asset, zero when unseen.
func (t *Table) Free(asset string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[asset].Free
}

// Snapshot returns all entries sorted by asset.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}
