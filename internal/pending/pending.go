// Package pending keeps short-lived records of payment attempts between the
// redirect to the gateway and its callback.
package pending

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/shopspring/decimal"
)

// Payment describes one attempt awaiting its callback.
type Payment struct {
	OrderID      string              `json:"order_id"`
	TenantID     string              `json:"tenant_id"`
	PlanID       string              `json:"plan_id"`
	BillingCycle models.BillingCycle `json:"billing_cycle"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Transaction materializes the pending transaction for p.
func (p Payment) Transaction(gatewayName string) *models.PaymentTransaction {
	return &models.PaymentTransaction{
		TenantID:     p.TenantID,
		PlanID:       p.PlanID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		BillingCycle: p.BillingCycle,
		OrderID:      p.OrderID,
		Gateway:      gatewayName,
		Status:       models.TransactionPending,
	}
}

// Store persists pending payments keyed by order id.
// Get returns nil without error when the record is missing or expired.
type Store interface {
	Put(ctx context.Context, p Payment, ttl time.Duration) error
	Get(ctx context.Context, orderID string) (*Payment, error)
	Delete(ctx context.Context, orderID string) error
}

func normalizeOrderID(orderID string) string {
	return strings.TrimSpace(orderID)
}
