package models

import "time"

// SubscriptionStatus represents whether a tenant holds a paid subscription.
type SubscriptionStatus string

// SubscriptionStatus constants.
const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionActive   SubscriptionStatus = "active"
)

// Tenant represents a company account. All other tenant-owned entities reference it.
type Tenant struct {
	ID string `gorm:"type:varchar(64);primaryKey" json:"id"` // Primary key.

	Slug         string `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"` // URL-safe unique handle.
	Name         string `gorm:"type:varchar(255);not null" json:"name"`             // Company name.
	AdminEmail   string `gorm:"type:varchar(255);not null" json:"admin_email"`      // Admin login email.
	PasswordHash string `gorm:"type:text;not null" json:"password_hash"`            // Bcrypt admin password hash.

	PlanID                string             `gorm:"type:varchar(64);not null;default:'free'" json:"plan_id"`               // Current plan.
	SubscriptionStatus    SubscriptionStatus `gorm:"type:varchar(16);not null;default:'inactive'" json:"subscription_status"` // Paid subscription state.
	SubscriptionExpiresAt *time.Time         `gorm:"index" json:"subscription_expires_at"`                                  // Paid period end, nil for open-ended.
	SubscriptionID        string             `gorm:"type:varchar(191)" json:"subscription_id"`                              // Order id of the last completed payment.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// HasActiveSubscription reports whether the subscription is active at now.
func (t Tenant) HasActiveSubscription(now time.Time) bool {
	if t.SubscriptionStatus != SubscriptionActive {
		return false
	}
	return t.SubscriptionExpiresAt == nil || t.SubscriptionExpiresAt.After(now)
}
