package pending

import (
	"context"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/redisconn"
)

const redisComponent = "pending payments"

// Manager stores pending payments in Redis when configured and falls back to memory
// while Redis is unreachable. Reads consult both so nothing written during an outage is lost.
type Manager struct {
	ttl    time.Duration
	prefix string
	conn   *redisconn.Conn
	memory *MemoryStore
}

// NewManager constructs a Manager. A nil conn keeps every payment in memory.
func NewManager(cfg config.PendingConfig, conn *redisconn.Conn, nowFn func() time.Time) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Manager{
		ttl:    cfg.TTL,
		prefix: cfg.RedisPrefix,
		conn:   conn,
		memory: NewMemoryStore(nowFn),
	}
}

// Put records p for the configured TTL.
func (m *Manager) Put(ctx context.Context, p Payment) error {
	if m == nil {
		return nil
	}
	if store, ok := m.redis(ctx); ok {
		errPut := store.Put(ctx, p, m.ttl)
		if errPut == nil {
			return nil
		}
		m.conn.Fail(redisComponent, errPut)
	}
	return m.memory.Put(ctx, p, m.ttl)
}

// Get returns the pending payment for orderID or nil.
func (m *Manager) Get(ctx context.Context, orderID string) (*Payment, error) {
	if m == nil {
		return nil, nil
	}
	if store, ok := m.redis(ctx); ok {
		p, errGet := store.Get(ctx, orderID)
		if errGet != nil {
			m.conn.Fail(redisComponent, errGet)
		} else if p != nil {
			return p, nil
		}
	}
	return m.memory.Get(ctx, orderID)
}

// Delete removes the pending payment for orderID from every backend.
func (m *Manager) Delete(ctx context.Context, orderID string) error {
	if m == nil {
		return nil
	}
	if store, ok := m.redis(ctx); ok {
		if errDel := store.Delete(ctx, orderID); errDel != nil {
			m.conn.Fail(redisComponent, errDel)
		}
	}
	return m.memory.Delete(ctx, orderID)
}

func (m *Manager) redis(ctx context.Context) (*RedisStore, bool) {
	client, ok := m.conn.Client(ctx)
	if !ok {
		return nil, false
	}
	return NewRedisStore(client, m.prefix), true
}
