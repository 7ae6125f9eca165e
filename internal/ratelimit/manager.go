package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/redisconn"
)

const redisComponent = "rate limit"

// Manager counts client hits in Redis when the shared connection is up and in
// memory otherwise.
type Manager struct {
	settings Settings
	conn     *redisconn.Conn
	nowFn    func() time.Time
	memory   *memoryCounter
}

// NewManager constructs a Manager. A nil conn keeps every counter in memory.
func NewManager(settings Settings, conn *redisconn.Conn, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	settings.RedisPrefix = strings.TrimSpace(settings.RedisPrefix)
	return &Manager{
		settings: settings,
		conn:     conn,
		nowFn:    nowFn,
		memory:   newMemoryCounter(),
	}
}

// Allow records one request from clientIP against the limit of scope.
// Requests without a client address or in a disabled scope are always allowed.
func (m *Manager) Allow(ctx context.Context, scope Scope, clientIP string) Result {
	if m == nil {
		return Result{Allowed: true}
	}
	limit := m.settings.LimitFor(scope)
	clientIP = strings.TrimSpace(clientIP)
	if limit <= 0 || clientIP == "" {
		return Result{Allowed: true}
	}
	now := m.nowFn()

	if client, ok := m.conn.Client(ctx); ok {
		hits, sec, errHit := redisHit(ctx, client, m.settings.RedisPrefix, scope, clientIP, now)
		if errHit == nil {
			return decide(hits, limit, sec)
		}
		m.conn.Fail(redisComponent, errHit)
	}
	hits, sec := m.memory.hit(scope, clientIP, now)
	return decide(hits, limit, sec)
}
