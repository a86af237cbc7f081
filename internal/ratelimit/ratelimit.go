// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"sync"
	"time"
)

// Config holds signal rate limiting configuration
type Config struct {
	Interval time.Duration // Minimum spacing between emitted signals per key
}

// DefaultTypingConfig spaces typing-start signals so the UI layer never
// floods the backend on every keystroke.
func DefaultTypingConfig() *Config {
	return &Config{
		Interval: 2 * time.Second,
	}
}

// signalRecord tracks the last emission for a key
type signalRecord struct {
	LastEmit time.Time
}

// SignalLimiter throttles fire-and-forget signals (typing indicators) so at
// most one passes per key per interval. Trailing stop signals always pass.
type SignalLimiter struct {
	config  *Config
	records map[string]*signalRecord
	mu      sync.Mutex
	now     func() time.Time
}

// NewSignalLimiter creates an in-memory signal limiter
func NewSignalLimiter(config *Config) *SignalLimiter {
	if config == nil {
		config = DefaultTypingConfig()
	}
	return &SignalLimiter{
		config:  config,
		records: make(map[string]*signalRecord),
		now:     time.Now,
	}
}

// Allow reports whether a signal for key should be emitted now, and records
// the emission if so.
func (sl *SignalLimiter) Allow(key string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := sl.now()
	record, exists := sl.records[key]
	if exists && now.Sub(record.LastEmit) < sl.config.Interval {
		return false
	}

	if !exists {
		record = &signalRecord{}
		sl.records[key] = record
	}
	record.LastEmit = now
	return true
}

// Reset clears the record for key, so the next signal passes immediately.
// Called when a trailing stop is emitted.
func (sl *SignalLimiter) Reset(key string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	delete(sl.records, key)
}
