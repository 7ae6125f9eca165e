package ratelimit

import (
	"sync"
	"time"
)

// scopeWindow holds the hits of one scope within a single second.
type scopeWindow struct {
	sec  int64
	hits map[string]int64
}

// memoryCounter counts hits per scope and client in process memory. Each scope
// keeps only its current second, so stale clients are dropped on rollover.
type memoryCounter struct {
	mu      sync.Mutex
	windows map[Scope]*scopeWindow
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{windows: make(map[Scope]*scopeWindow)}
}

func (c *memoryCounter) hit(scope Scope, clientIP string, now time.Time) (int64, int64) {
	sec := now.Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.windows[scope]
	if w == nil || w.sec != sec {
		w = &scopeWindow{sec: sec, hits: make(map[string]int64)}
		c.windows[scope] = w
	}
	// Rejected requests still count; the window closes within a second anyway.
	w.hits[clientIP]++
	return w.hits[clientIP], sec
}
