package models

import "time"

// DefaultCardRetention caps the generated card log per tenant.
const DefaultCardRetention = 500

// GeneratedCard is an append-only audit entry written after a card is rendered.
type GeneratedCard struct {
	ID         string `gorm:"type:varchar(64);primaryKey" json:"id"`                                          // Primary key.
	TenantID   string `gorm:"type:varchar(64);not null;index:idx_generated_cards_tenant_time" json:"tenant_id"` // Owning tenant.
	EmployeeID string `gorm:"type:varchar(64);not null;index" json:"employee_id"`                             // Card holder.

	FrontTemplateID string `gorm:"type:varchar(64)" json:"front_template_id"` // Template used for the front.
	BackTemplateID  string `gorm:"type:varchar(64)" json:"back_template_id"`  // Template used for the back.
	FrontFile       string `gorm:"type:text" json:"front_file"`               // Rendered front image reference.
	BackFile        string `gorm:"type:text" json:"back_file"`                // Rendered back image reference.
	PDFFile         string `gorm:"type:text" json:"pdf_file"`                 // Exported PDF reference.

	GeneratedAt time.Time `gorm:"not null;index:idx_generated_cards_tenant_time" json:"generated_at"` // Render time.
}
