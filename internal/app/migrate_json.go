package app

import (
	"context"
	"fmt"
	"os"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/db"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
	log "github.com/sirupsen/logrus"
)

// MigrationReport counts what MigrateJSON copied. Records already present in
// the database are counted in SkippedRecords instead of their kind.
type MigrationReport struct {
	Plans           int `json:"plans"`
	Tenants         int `json:"tenants"`
	ExistingTenants int `json:"existing_tenants"`
	Employees       int `json:"employees"`
	Templates       int `json:"templates"`
	GeneratedCards  int `json:"generated_cards"`
	Transactions    int `json:"transactions"`
	SkippedRecords  int `json:"skipped_records"`
}

// MigrateJSON copies a file backend data directory into the configured database.
// Records are matched by id, so a rerun after a failure copies only what is missing.
func MigrateJSON(ctx context.Context, cfg config.AppConfig, sourceDir string) (MigrationReport, error) {
	appCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return MigrationReport{}, err
	}
	dsn, err := appCfg.DSN()
	if err != nil {
		return MigrationReport{}, fmt.Errorf("migrate json: a database is required: %w", err)
	}

	if info, errStat := os.Stat(sourceDir); errStat != nil || !info.IsDir() {
		return MigrationReport{}, fmt.Errorf("migrate json: source %q is not a directory", sourceDir)
	}
	src, err := store.NewFileStore(sourceDir, appCfg.Cards.Retention)
	if err != nil {
		return MigrationReport{}, err
	}
	defer func() {
		_ = src.Close()
	}()

	conn, err := db.OpenContext(ctx, dsn)
	if err != nil {
		return MigrationReport{}, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		_ = db.Close(conn)
		return MigrationReport{}, errMigrate
	}
	dst := store.NewGormStore(conn, appCfg.Cards.Retention)
	defer func() {
		if errClose := dst.Close(); errClose != nil {
			log.WithError(errClose).Warn("migrate json: close database")
		}
	}()

	report, err := copyStorage(ctx, src, dst)
	log.WithFields(log.Fields{
		"source":           sourceDir,
		"target":           describeDSN(dsn),
		"tenants":          report.Tenants,
		"existing_tenants": report.ExistingTenants,
		"employees":        report.Employees,
		"templates":        report.Templates,
		"generated_cards":  report.GeneratedCards,
		"transactions":     report.Transactions,
		"skipped_records":  report.SkippedRecords,
	}).Info("migrate json: finished")
	return report, err
}

// copyStorage copies plans and every tenant with its records from src to dst.
func copyStorage(ctx context.Context, src, dst store.Storage) (MigrationReport, error) {
	var report MigrationReport

	plans, err := src.ListPlans(ctx)
	if err != nil {
		return report, fmt.Errorf("migrate json: list plans: %w", err)
	}
	for i := range plans {
		if errSave := dst.SavePlan(ctx, &plans[i]); errSave != nil {
			return report, fmt.Errorf("migrate json: plan %s: %w", plans[i].ID, errSave)
		}
		report.Plans++
	}

	tenants, err := src.ListTenants(ctx)
	if err != nil {
		return report, fmt.Errorf("migrate json: list tenants: %w", err)
	}
	for i := range tenants {
		t := tenants[i]
		_, errGet := dst.GetTenant(ctx, t.ID)
		switch {
		case errGet == nil:
			log.WithField("tenant", t.Slug).Info("migrate json: tenant already present, copying missing records")
			report.ExistingTenants++
		case apperr.Is(errGet, apperr.KindNotFound):
			if errCreate := dst.CreateTenant(ctx, &t); errCreate != nil {
				return report, fmt.Errorf("migrate json: tenant %s: %w", t.Slug, errCreate)
			}
			report.Tenants++
		default:
			return report, fmt.Errorf("migrate json: tenant %s: %w", t.Slug, errGet)
		}
		if errCopy := copyTenantRecords(ctx, src, dst, t.ID, &report); errCopy != nil {
			return report, fmt.Errorf("migrate json: tenant %s: %w", t.Slug, errCopy)
		}
	}
	return report, nil
}

// present reports whether dst already holds rec.
func present(ctx context.Context, dst store.Storage, kind store.Kind, tenantID string, rec store.Record) (bool, error) {
	_, err := dst.Get(ctx, kind, tenantID, rec.EntityID())
	if err == nil {
		return true, nil
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	return false, err
}

// copyMissing creates each record of kind that dst does not hold yet and
// returns how many it created.
func copyMissing(ctx context.Context, src, dst store.Storage, kind store.Kind, tenantID string, report *MigrationReport) (int, error) {
	recs, err := src.List(ctx, kind, tenantID, store.Filter{})
	if err != nil {
		return 0, err
	}
	created := 0
	for _, rec := range recs {
		exists, errPresent := present(ctx, dst, kind, tenantID, rec)
		if errPresent != nil {
			return created, errPresent
		}
		if exists {
			report.SkippedRecords++
			continue
		}
		if errCreate := dst.Create(ctx, tenantID, rec); errCreate != nil {
			return created, fmt.Errorf("%s %s: %w", kind, rec.EntityID(), errCreate)
		}
		created++
	}
	return created, nil
}

func copyTenantRecords(ctx context.Context, src, dst store.Storage, tenantID string, report *MigrationReport) error {
	employees, err := copyMissing(ctx, src, dst, store.KindEmployee, tenantID, report)
	report.Employees += employees
	if err != nil {
		return err
	}

	templates, err := copyMissing(ctx, src, dst, store.KindTemplate, tenantID, report)
	report.Templates += templates
	if err != nil {
		return err
	}
	active, err := store.ListAs[*models.Template](ctx, src, store.KindTemplate, tenantID, store.Filter{ActiveOnly: true})
	if err != nil {
		return err
	}
	for _, tpl := range active {
		if errActivate := dst.ActivateTemplate(ctx, tenantID, tpl.ID, tpl.Side); errActivate != nil {
			return errActivate
		}
	}

	// The log lists newest first; replay oldest first so retention pruning keeps the newest.
	cards, err := store.ListAs[*models.GeneratedCard](ctx, src, store.KindGeneratedCard, tenantID, store.Filter{})
	if err != nil {
		return err
	}
	for i := len(cards) - 1; i >= 0; i-- {
		exists, errPresent := present(ctx, dst, store.KindGeneratedCard, tenantID, cards[i])
		if errPresent != nil {
			return errPresent
		}
		if exists {
			report.SkippedRecords++
			continue
		}
		if errRecord := dst.RecordGeneratedCard(ctx, tenantID, cards[i]); errRecord != nil {
			return fmt.Errorf("%s %s: %w", store.KindGeneratedCard, cards[i].ID, errRecord)
		}
		report.GeneratedCards++
	}

	transactions, err := copyMissing(ctx, src, dst, store.KindTransaction, tenantID, report)
	report.Transactions += transactions
	return err
}
