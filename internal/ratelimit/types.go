// Package ratelimit caps how many requests one client address may send per
// second to the payment webhook and to the unauthenticated tenant endpoints.
package ratelimit

import "time"

// Scope names the group of routes a limit applies to.
type Scope string

const (
	// ScopeWebhook covers gateway callbacks.
	ScopeWebhook Scope = "webhook"
	// ScopePublic covers unauthenticated tenant endpoints.
	ScopePublic Scope = "public"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// decide turns the hit count of the current window into a Result.
func decide(hits int64, limit int, windowSec int64) Result {
	reset := time.Unix(windowSec+1, 0).UTC()
	if hits > int64(limit) {
		return Result{Allowed: false, Reset: reset}
	}
	return Result{Allowed: true, Remaining: limit - int(hits), Reset: reset}
}
