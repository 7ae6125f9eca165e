package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unlimited marks a plan limit without an upper bound.
const Unlimited = -1

// Default plan identifiers seeded on first start.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Plan represents a subscription tier with its price and resource limits.
type Plan struct {
	ID string `gorm:"type:varchar(64);primaryKey" json:"id"` // Plan identifier such as "pro".

	Name         string          `gorm:"type:varchar(255);not null" json:"name"`                    // Display name.
	Description  string          `gorm:"type:text" json:"description"`                              // Plan description.
	PriceMonthly decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_monthly"` // Monthly price.
	PriceYearly  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_yearly"`  // Yearly price.

	MaxEmployees int `gorm:"not null;default:0" json:"max_employees"`  // Employee limit, -1 for unlimited.
	MaxTemplates int `gorm:"not null;default:0" json:"max_templates"`  // Template limit, -1 for unlimited.
	MaxStorageMB int `gorm:"not null;default:0" json:"max_storage_mb"` // Storage limit in MB, -1 for unlimited.

	SortOrder int  `gorm:"not null;default:0" json:"sort_order"` // Display ordering weight.
	IsActive  bool `gorm:"not null" json:"is_active"`            // Whether the plan can be purchased.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// PriceFor returns the plan price for the billing cycle.
func (p Plan) PriceFor(cycle BillingCycle) (decimal.Decimal, bool) {
	switch cycle {
	case BillingCycleMonthly:
		return p.PriceMonthly, true
	case BillingCycleYearly:
		return p.PriceYearly, true
	default:
		return decimal.Zero, false
	}
}

// DefaultPlans returns the plans seeded into an empty store.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:           PlanFree,
			Name:         "Free",
			Description:  "Up to 5 employees and one template pair.",
			PriceMonthly: decimal.Zero,
			PriceYearly:  decimal.Zero,
			MaxEmployees: 5,
			MaxTemplates: 2,
			MaxStorageMB: 50,
			SortOrder:    1,
			IsActive:     true,
		},
		{
			ID:           PlanPro,
			Name:         "Pro",
			Description:  "Growing teams with custom templates.",
			PriceMonthly: decimal.RequireFromString("9.99"),
			PriceYearly:  decimal.RequireFromString("99.00"),
			MaxEmployees: 100,
			MaxTemplates: 10,
			MaxStorageMB: 1024,
			SortOrder:    2,
			IsActive:     true,
		},
		{
			ID:           PlanEnterprise,
			Name:         "Enterprise",
			Description:  "Unlimited employees and templates.",
			PriceMonthly: decimal.RequireFromString("49.99"),
			PriceYearly:  decimal.RequireFromString("499.00"),
			MaxEmployees: Unlimited,
			MaxTemplates: Unlimited,
			MaxStorageMB: Unlimited,
			SortOrder:    3,
			IsActive:     true,
		},
	}
}
