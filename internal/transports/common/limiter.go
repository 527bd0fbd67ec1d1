package common

import (
	"sync"
	"time"
)

const sweepEvery = 256

// RateLimiter реализует sliding-window limit на key.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
	calls  int
}

// NewRateLimiter создает limiter с лимитом событий в окне.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow возвращает true, если запрос укладывается в лимит.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(cutoff)
	}

	kept := prune(l.events[key], cutoff)
	if len(kept) >= l.limit {
		l.events[key] = kept
		return false
	}
	l.events[key] = append(kept, now)
	return true
}

// Keys возвращает число отслеживаемых ключей.
func (l *RateLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// sweep удаляет ключи без событий в окне; вызывается под l.mu.
func (l *RateLimiter) sweep(cutoff time.Time) {
	for key, items := range l.events {
		if kept := prune(items, cutoff); len(kept) == 0 {
			delete(l.events, key)
		} else {
			l.events[key] = kept
		}
	}
}

func prune(items []time.Time, cutoff time.Time) []time.Time {
	kept := items[:0]
	for _, ts := range items {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
