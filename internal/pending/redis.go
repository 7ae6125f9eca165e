package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending payments in Redis with a native TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: strings.TrimSpace(prefix)}
}

// Put stores p with SET EX.
func (s *RedisStore) Put(ctx context.Context, p Payment, ttl time.Duration) error {
	key := normalizeOrderID(p.OrderID)
	if key == "" || s == nil || s.client == nil {
		return nil
	}
	data, errMarshal := json.Marshal(p)
	if errMarshal != nil {
		return fmt.Errorf("pending redis: marshal: %w", errMarshal)
	}
	return s.client.Set(ctx, s.buildKey(key), data, ttl).Err()
}

// Get returns the payment for orderID or nil.
func (s *RedisStore) Get(ctx context.Context, orderID string) (*Payment, error) {
	key := normalizeOrderID(orderID)
	if key == "" || s == nil || s.client == nil {
		return nil, nil
	}
	data, errGet := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, nil
		}
		return nil, errGet
	}
	var p Payment
	if errUnmarshal := json.Unmarshal(data, &p); errUnmarshal != nil {
		return nil, fmt.Errorf("pending redis: unmarshal: %w", errUnmarshal)
	}
	return &p, nil
}

// Delete removes the payment for orderID.
func (s *RedisStore) Delete(ctx context.Context, orderID string) error {
	key := normalizeOrderID(orderID)
	if key == "" || s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.buildKey(key)).Err()
}

func (s *RedisStore) buildKey(orderID string) string {
	if s.prefix == "" {
		return orderID
	}
	return s.prefix + ":" + orderID
}
