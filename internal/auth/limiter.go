// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleEviction    = time.Hour
)

// LoginLimiter throttles login attempts per client IP. Each IP gets a token
// bucket holding the configured attempt count, refilled one token per
// window, so a burst of failures locks the IP out for roughly a window per
// extra attempt.
type LoginLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	stopClean chan struct{}
	stopOnce  sync.Once
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLoginLimiter creates a limiter allowing attempts per window per IP.
// Non-positive arguments fall back to 5 attempts per minute.
func NewLoginLimiter(attempts int, window time.Duration) *LoginLimiter {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}

	l := &LoginLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Every(window),
		burst:     attempts,
		stopClean: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether another attempt from the IP is permitted.
func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Close stops the background cleanup goroutine.
func (l *LoginLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopClean) })
}

func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopClean:
			return
		}
	}
}

// evictIdle drops per-IP buckets untouched for the eviction window.
func (l *LoginLimiter) evictIdle() {
	cutoff := time.Now().Add(-limiterIdleEviction)

	l.mu.Lock()
	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
	l.mu.Unlock()
}
