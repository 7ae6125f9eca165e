// Package redisconn owns the Redis client shared by the pending payment store
// and the rate limiter. While Redis is unreachable a breaker keeps callers on
// their in-memory fallbacks instead of redialing on every request.
package redisconn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/BizCardCloud/internal/config"
	log "github.com/sirupsen/logrus"
)

const (
	breakerDuration = 30 * time.Second
	pingTimeout     = 2 * time.Second
)

// ClientFactory constructs a Redis client for the given options.
type ClientFactory func(options *redis.Options) *redis.Client

// Conn dials Redis on first use and hands the same client to every caller.
type Conn struct {
	enabled   bool
	options   redis.Options
	nowFn     func() time.Time
	newClient ClientFactory

	mu           sync.Mutex
	client       *redis.Client
	breakerUntil time.Time
}

// New builds a Conn from the pending section, which carries the Redis settings.
// A nil nowFn or factory falls back to the defaults.
func New(cfg config.PendingConfig, nowFn func() time.Time, newClient ClientFactory) *Conn {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	db := cfg.RedisDB
	if db < 0 {
		db = 0
	}
	return &Conn{
		enabled: cfg.RedisEnabled,
		options: redis.Options{
			Addr:     strings.TrimSpace(cfg.RedisAddr),
			Password: strings.TrimSpace(cfg.RedisPassword),
			DB:       db,
		},
		nowFn:     nowFn,
		newClient: newClient,
	}
}

// Client returns the shared client, dialing it if needed. It reports false when
// Redis is disabled, the breaker is open, or the dial fails.
func (c *Conn) Client(ctx context.Context) (*redis.Client, bool) {
	if c == nil || !c.enabled {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.breakerUntil.IsZero() {
		if now.Before(c.breakerUntil) {
			return nil, false
		}
		c.breakerUntil = time.Time{}
	}
	if c.client != nil {
		return c.client, true
	}
	client, errDial := c.dial(ctx)
	if errDial != nil {
		c.trip("redis", errDial, now)
		return nil, false
	}
	c.client = client
	return client, true
}

// Fail opens the breaker after a command on the shared client failed.
// component names the caller in the warning.
func (c *Conn) Fail(component string, err error) {
	if c == nil || err == nil {
		return
	}
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trip(component, err, now)
}

// Close releases the client. A later Client call dials again.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	errClose := c.client.Close()
	c.client = nil
	return errClose
}

func (c *Conn) dial(ctx context.Context) (*redis.Client, error) {
	if c.options.Addr == "" {
		return nil, errors.New("redis: missing address")
	}
	opts := c.options
	client := c.newClient(&opts)
	ctxPing, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	return client, nil
}

// trip must be called with mu held.
func (c *Conn) trip(component string, err error, now time.Time) {
	if !c.breakerUntil.IsZero() && now.Before(c.breakerUntil) {
		return
	}
	c.breakerUntil = now.Add(breakerDuration)
	log.WithError(err).WithField("component", component).Warn("redis unavailable, falling back to memory")
}
