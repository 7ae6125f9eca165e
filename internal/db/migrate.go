package db

import (
	"errors"
	"fmt"

	"github.com/router-for-me/BizCardCloud/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, DialectMySQL, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Plan{},
		&models.Tenant{},
		&models.Employee{},
		&models.Template{},
		&models.GeneratedCard{},
		&models.PaymentTransaction{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errIndex := ensureSingleActiveTemplateIndex(conn); errIndex != nil {
		return errIndex
	}
	return EnsureDefaultPlans(conn)
}

// ensureSingleActiveTemplateIndex backs the one-active-template-per-side rule with a
// partial unique index where the dialect supports one. MySQL relies on the
// transactional activation path only.
func ensureSingleActiveTemplateIndex(conn *gorm.DB) error {
	var stmt string
	switch DialectName(conn) {
	case DialectPostgres:
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_one_active ON templates (tenant_id, side) WHERE is_active`
	case DialectSQLite:
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_one_active ON templates (tenant_id, side) WHERE is_active = 1`
	default:
		return nil
	}
	if errExec := conn.Exec(stmt).Error; errExec != nil {
		return fmt.Errorf("db: create active template index: %w", errExec)
	}
	return nil
}

// EnsureDefaultPlans inserts the default plans that are missing. Existing rows are left untouched.
func EnsureDefaultPlans(conn *gorm.DB) error {
	for _, plan := range models.DefaultPlans() {
		var existing models.Plan
		errFind := conn.Where("id = ?", plan.ID).Take(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: query plan %s: %w", plan.ID, errFind)
		}
		planCopy := plan
		if errCreate := conn.Create(&planCopy).Error; errCreate != nil {
			return fmt.Errorf("db: seed plan %s: %w", plan.ID, errCreate)
		}
	}
	return nil
}
