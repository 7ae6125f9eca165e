package pending

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/redisconn"
	"github.com/shopspring/decimal"
)

func samplePayment() Payment {
	return Payment{
		OrderID:      "SUB_t1_100",
		TenantID:     "t1",
		PlanID:       models.PlanPro,
		BillingCycle: models.BillingCycleYearly,
		Amount:       decimal.RequireFromString("99.00"),
		Currency:     "USD",
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Put(ctx, samplePayment(), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, " SUB_t1_100 ")
	if err != nil || got == nil {
		t.Fatalf("expected stored payment, got %v %v", got, err)
	}
	if got.PlanID != models.PlanPro {
		t.Fatalf("expected plan pro, got %s", got.PlanID)
	}

	now = now.Add(time.Minute)
	got, err = store.Get(ctx, "SUB_t1_100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired payment to be gone")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	_ = store.Put(ctx, samplePayment(), time.Hour)
	_ = store.Delete(ctx, "SUB_t1_100")
	if got, _ := store.Get(ctx, "SUB_t1_100"); got != nil {
		t.Fatalf("expected payment deleted")
	}
}

func TestManagerFallsBackToMemoryWhenRedisUnavailable(t *testing.T) {
	calls := 0
	factory := func(options *redis.Options) *redis.Client {
		calls++
		options.DialTimeout = 50 * time.Millisecond
		options.MaxRetries = -1
		return redis.NewClient(options)
	}
	cfg := config.PendingConfig{
		TTL:          time.Hour,
		RedisEnabled: true,
		RedisAddr:    "127.0.0.1:1",
	}
	conn := redisconn.New(cfg, nil, factory)
	t.Cleanup(func() { _ = conn.Close() })
	m := NewManager(cfg, conn, nil)
	ctx := context.Background()

	if err := m.Put(ctx, samplePayment()); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.Get(ctx, "SUB_t1_100")
	if err != nil || got == nil {
		t.Fatalf("expected payment from memory fallback, got %v %v", got, err)
	}
	if err := m.Delete(ctx, "SUB_t1_100"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected breaker to suppress reconnects, got %d dials", calls)
	}
}

func TestManagerWithoutRedis(t *testing.T) {
	m := NewManager(config.PendingConfig{}, nil, nil)
	ctx := context.Background()
	if err := m.Put(ctx, samplePayment()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, _ := m.Get(ctx, "SUB_t1_100"); got == nil {
		t.Fatalf("expected payment kept in memory")
	}
}

func TestPaymentTransaction(t *testing.T) {
	txn := samplePayment().Transaction("amwal")
	if txn.Status != models.TransactionPending || txn.OrderID != "SUB_t1_100" || txn.Gateway != "amwal" {
		t.Fatalf("unexpected transaction %+v", txn)
	}
	if !txn.Amount.Equal(decimal.RequireFromString("99")) {
		t.Fatalf("unexpected amount %s", txn.Amount)
	}
}
