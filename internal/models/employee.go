package models

import (
	"strings"
	"time"
)

// Employee is a card holder owned by exactly one tenant.
type Employee struct {
	ID       string `gorm:"type:varchar(64);primaryKey" json:"id"`                                           // Primary key.
	TenantID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_employees_tenant_email" json:"tenant_id"` // Owning tenant.
	Email    string `gorm:"type:varchar(191);not null;uniqueIndex:idx_employees_tenant_email" json:"email"`    // Lowercased email, unique per tenant.

	NameEn     string `gorm:"type:varchar(255)" json:"name_en"`     // English name.
	NameAr     string `gorm:"type:varchar(255)" json:"name_ar"`     // Arabic name.
	PositionEn string `gorm:"type:varchar(255)" json:"position_en"` // English job title.
	PositionAr string `gorm:"type:varchar(255)" json:"position_ar"` // Arabic job title.
	CompanyEn  string `gorm:"type:varchar(255)" json:"company_en"`  // English company name.
	CompanyAr  string `gorm:"type:varchar(255)" json:"company_ar"`  // Arabic company name.

	Phone   string `gorm:"type:varchar(64)" json:"phone"`   // Office phone.
	Mobile  string `gorm:"type:varchar(64)" json:"mobile"`  // Mobile phone.
	Website string `gorm:"type:varchar(255)" json:"website"` // Website URL.
	Address string `gorm:"type:text" json:"address"`         // Postal address.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
