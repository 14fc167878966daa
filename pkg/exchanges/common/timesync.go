package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync keeps a server-minus-local offset so that signed request
// timestamps stay inside the exchange's recv window even when the local
// clock drifts.
type TimeSync struct {
	getServerTime func(ctx context.Context) (int64, error)
	offset        int64 // milliseconds (server - local)
	syncInterval  time.Duration
	mu            sync.RWMutex
}

// NewTimeSync creates a time synchronization manager.
func NewTimeSync(getServerTime func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		syncInterval:  30 * time.Minute,
	}
}

// Start performs an initial sync and keeps re-syncing periodically until
// the context is cancelled.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("time sync: initial sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("time sync: %v", err)
				}
			}
		}
	}()
}

// Sync fetches server time and recomputes the offset, assuming symmetric
// network latency.
func (ts *TimeSync) Sync(ctx context.Context) error {
	localBefore := time.Now().UnixMilli()
	serverTime, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	localAfter := time.Now().UnixMilli()

	latency := (localAfter - localBefore) / 2
	localTime := localBefore + latency

	ts.mu.Lock()
	ts.offset = serverTime - localTime
	ts.mu.Unlock()

	log.Printf("time sync: offset=%dms", serverTime-localTime)
	return nil
}

// Now returns the current time in epoch ms adjusted for the server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}
