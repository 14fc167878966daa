package events

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Bus is a lightweight pub/sub broker using bounded channels. Publishing
// never blocks; a slow subscriber loses messages rather than stalling a
// stream worker.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event and returns the channel
// and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[e]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[e] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Publish fans the payload out to subscribers without blocking.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}

// Logf writes to the process log and mirrors the line on the EventLog
// topic for the presentation layer.
func (b *Bus) Logf(component, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("%s: %s", component, msg)
	b.Publish(EventLog, LogEntry{Time: time.Now(), Component: component, Message: msg})
}
