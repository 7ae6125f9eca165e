package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BillingCycle represents the subscription period unit.
type BillingCycle string

// BillingCycle constants define billing periods.
const (
	// BillingCycleMonthly charges monthly.
	BillingCycleMonthly BillingCycle = "monthly"
	// BillingCycleYearly charges yearly.
	BillingCycleYearly BillingCycle = "yearly"
)

// ParseBillingCycle normalizes a cycle name.
func ParseBillingCycle(raw string) (BillingCycle, bool) {
	switch BillingCycle(strings.ToLower(strings.TrimSpace(raw))) {
	case BillingCycleMonthly:
		return BillingCycleMonthly, true
	case BillingCycleYearly:
		return BillingCycleYearly, true
	default:
		return "", false
	}
}

// Extend returns the expiry reached by paying one cycle starting at from.
func (c BillingCycle) Extend(from time.Time) time.Time {
	if c == BillingCycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// TransactionStatus represents the lifecycle state of a payment transaction.
type TransactionStatus string

// TransactionStatus constants define the payment state machine.
const (
	// TransactionPending marks a transaction awaiting the gateway callback.
	TransactionPending TransactionStatus = "pending"
	// TransactionCompleted marks a paid transaction. Terminal.
	TransactionCompleted TransactionStatus = "completed"
	// TransactionFailed marks a failed or cancelled transaction. Terminal.
	TransactionFailed TransactionStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// PaymentTransaction records one subscription payment attempt.
type PaymentTransaction struct {
	ID string `gorm:"type:varchar(64);primaryKey" json:"id"` // Primary key.

	TenantID string `gorm:"type:varchar(64);not null;index" json:"tenant_id"` // Owning tenant.
	PlanID   string `gorm:"type:varchar(64);not null" json:"plan_id"`         // Purchased plan.

	Amount       decimal.Decimal   `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`    // Charged amount.
	Currency     string            `gorm:"type:varchar(8);not null" json:"currency"`               // ISO currency code.
	BillingCycle BillingCycle      `gorm:"type:varchar(16);not null" json:"billing_cycle"`         // Paid period.
	OrderID      string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"order_id"` // Gateway order id.
	ExternalID   string            `gorm:"type:varchar(191)" json:"external_transaction_id"`       // Gateway transaction id.
	Gateway      string            `gorm:"type:varchar(32);not null" json:"gateway"`               // Gateway name.
	Status       TransactionStatus `gorm:"type:varchar(16);not null;index" json:"status"`          // Current state.

	GatewayResponse datatypes.JSON `json:"gateway_response,omitempty"` // Raw callback payload for audit.

	CompletedAt *time.Time `json:"completed_at,omitempty"` // Time the transaction reached a terminal state.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}
