package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TemplateSide identifies which face of the card a template renders.
type TemplateSide string

// TemplateSide constants.
const (
	SideFront TemplateSide = "front"
	SideBack  TemplateSide = "back"
)

// ParseTemplateSide normalizes a side name.
func ParseTemplateSide(raw string) (TemplateSide, bool) {
	switch TemplateSide(strings.ToLower(strings.TrimSpace(raw))) {
	case SideFront:
		return SideFront, true
	case SideBack:
		return SideBack, true
	default:
		return "", false
	}
}

// FieldSettings positions and styles one card field.
type FieldSettings struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSize   int     `json:"fontSize"`
	FontFamily string  `json:"fontFamily"`
	FontWeight string  `json:"fontWeight"`
	Color      string  `json:"color"`
	Enabled    bool    `json:"enabled"`
}

// FieldLayout maps card field names to their settings.
type FieldLayout map[string]FieldSettings

// Value implements driver.Valuer for database serialization.
func (l FieldLayout) Value() (driver.Value, error) {
	if l == nil {
		l = FieldLayout{}
	}
	data, errMarshal := json.Marshal(map[string]FieldSettings(l))
	if errMarshal != nil {
		return nil, fmt.Errorf("field layout marshal: %w", errMarshal)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database deserialization.
func (l *FieldLayout) Scan(value any) error {
	if l == nil {
		return fmt.Errorf("field layout scan: nil receiver")
	}
	var data []byte
	switch typed := value.(type) {
	case nil:
		*l = FieldLayout{}
		return nil
	case []byte:
		data = typed
	case string:
		data = []byte(typed)
	default:
		return fmt.Errorf("field layout scan: unsupported type %T", value)
	}
	if len(data) == 0 {
		*l = FieldLayout{}
		return nil
	}
	out := FieldLayout{}
	if errUnmarshal := json.Unmarshal(data, &out); errUnmarshal != nil {
		return fmt.Errorf("field layout scan: %w", errUnmarshal)
	}
	*l = out
	return nil
}

// GormDataType stores the layout as text so every dialect can hold it.
func (FieldLayout) GormDataType() string {
	return "text"
}

// Template describes the visual layout for one side of a card.
type Template struct {
	ID       string       `gorm:"type:varchar(64);primaryKey" json:"id"`                                   // Primary key.
	TenantID string       `gorm:"type:varchar(64);not null;index:idx_templates_tenant_side" json:"tenant_id"` // Owning tenant.
	Side     TemplateSide `gorm:"type:varchar(8);not null;index:idx_templates_tenant_side" json:"side"`     // Card face.

	Name            string      `gorm:"type:varchar(255);not null" json:"name"`   // Display name.
	BackgroundImage string      `gorm:"type:text" json:"background_image"`        // Background image reference.
	Fields          FieldLayout `json:"fields"`                                   // Field layout map.
	IsActive        bool        `gorm:"not null;default:false" json:"is_active"` // Whether the template is in use for its side.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// defaultFieldNames lists the card fields known to the renderer, in layout order.
var defaultFieldNames = []string{
	"name_en", "name_ar", "position_en", "position_ar",
	"phone", "mobile", "email", "company_en",
	"company_ar", "website", "address", "qr_code",
}

// DefaultFieldLayout returns the starter layout for a new template.
func DefaultFieldLayout() FieldLayout {
	layout := make(FieldLayout, len(defaultFieldNames))
	for i, name := range defaultFieldNames {
		settings := FieldSettings{
			X:          50,
			Y:          float64(50 + i*30),
			FontSize:   14,
			FontFamily: "Arial",
			FontWeight: "normal",
			Color:      "#000000",
			Enabled:    true,
		}
		switch name {
		case "name_en", "name_ar":
			settings.FontSize = 20
			settings.FontWeight = "bold"
		case "qr_code":
			settings.X = 300
			settings.Y = 150
			settings.FontSize = 0
		}
		if strings.HasSuffix(name, "_ar") {
			settings.X = 250
		}
		layout[name] = settings
	}
	return layout
}
