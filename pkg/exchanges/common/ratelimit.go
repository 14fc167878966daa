package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// WeightTracker mirrors the exchange's request-weight accounting from
// response headers so the client can warn before a ban threshold.
type WeightTracker struct {
	usedWeight    int
	limit         int
	lastReset     time.Time
	resetInterval time.Duration
	mu            sync.RWMutex
}

// NewWeightTracker creates a tracker.
// limit: maximum weight allowed per window (1200/min for spot).
func NewWeightTracker(limit int, resetInterval time.Duration) *WeightTracker {
	return &WeightTracker{
		limit:         limit,
		resetInterval: resetInterval,
		lastReset:     time.Now(),
	}
}

// UpdateFromHeader ingests the X-MBX-USED-WEIGHT-1M header value.
func (wt *WeightTracker) UpdateFromHeader(headerValue string) {
	if headerValue == "" {
		return
	}
	weight, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	wt.mu.Lock()
	defer wt.mu.Unlock()

	if time.Since(wt.lastReset) >= wt.resetInterval {
		wt.usedWeight = 0
		wt.lastReset = time.Now()
	}
	wt.usedWeight = weight

	percentage := float64(wt.usedWeight) / float64(wt.limit) * 100
	if percentage >= 95 {
		log.Printf("rate limit critical: %d/%d (%.1f%%) - approaching ban threshold", wt.usedWeight, wt.limit, percentage)
	} else if percentage >= 80 {
		log.Printf("rate limit warning: %d/%d (%.1f%%)", wt.usedWeight, wt.limit, percentage)
	}
}

// Usage returns current usage information.
func (wt *WeightTracker) Usage() (used int, limit int, percentage float64) {
	wt.mu.RLock()
	defer wt.mu.RUnlock()

	if time.Since(wt.lastReset) >= wt.resetInterval {
		return 0, wt.limit, 0
	}
	return wt.usedWeight, wt.limit, float64(wt.usedWeight) / float64(wt.limit) * 100
}
