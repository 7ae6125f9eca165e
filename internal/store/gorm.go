package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/db"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists tenant data in a relational database via GORM.
type GormStore struct {
	db        *gorm.DB
	retention int
	now       func() time.Time
}

// NewGormStore constructs a GormStore. retention caps the generated card log per tenant.
func NewGormStore(conn *gorm.DB, retention int) *GormStore {
	if retention <= 0 {
		retention = models.DefaultCardRetention
	}
	return &GormStore{db: conn, retention: retention, now: time.Now}
}

// Backend reports the backend name.
func (s *GormStore) Backend() string { return BackendSQL }

// Close releases the connection pool.
func (s *GormStore) Close() error {
	if s == nil {
		return nil
	}
	return db.Close(s.db)
}

func (s *GormStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *GormStore) ready(op string) error {
	if s == nil || s.db == nil {
		return apperr.Configuration(apperr.CodeStorageUnavailable, op, "gorm store not initialized")
	}
	return nil
}

// lockForUpdate adds a row lock where the dialect supports one.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if db.SupportsRowLocking(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func newModel(kind Kind) (Record, error) {
	switch kind {
	case KindEmployee:
		return &models.Employee{}, nil
	case KindTemplate:
		return &models.Template{}, nil
	case KindGeneratedCard:
		return &models.GeneratedCard{}, nil
	case KindTransaction:
		return &models.PaymentTransaction{}, nil
	default:
		return nil, apperr.Validation("gorm store", "unknown entity kind %q", kind)
	}
}

// Get loads one tenant-owned record.
func (s *GormStore) Get(ctx context.Context, kind Kind, tenantID, id string) (Record, error) {
	const op = "gorm store: get"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return nil, err
	}
	rec, err := newModel(kind)
	if err != nil {
		return nil, err
	}
	if errFind := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(rec).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFound(kind, id)
		}
		return nil, apperr.Persistence(op, errFind)
	}
	return rec, nil
}

// List loads tenant-owned records matching filter.
func (s *GormStore) List(ctx context.Context, kind Kind, tenantID string, filter Filter) ([]Record, error) {
	const op = "gorm store: list"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return nil, err
	}
	if err := validKind(op, kind); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var out []Record
	switch kind {
	case KindEmployee:
		if email := models.NormalizeEmail(filter.Email); email != "" {
			q = q.Where("email = ?", email)
		}
		if term := strings.TrimSpace(filter.Search); term != "" {
			pattern := db.NormalizeLikePattern(s.db, term)
			q = q.Where(
				s.db.Where(db.CaseInsensitiveLikeExpr(s.db, "name_en"), pattern).
					Or(db.CaseInsensitiveLikeExpr(s.db, "name_ar"), pattern).
					Or(db.CaseInsensitiveLikeExpr(s.db, "email"), pattern),
			)
		}
		var rows []models.Employee
		if errFind := q.Order("created_at ASC, id ASC").Find(&rows).Error; errFind != nil {
			return nil, apperr.Persistence(op, errFind)
		}
		out = make([]Record, 0, len(rows))
		for i := range rows {
			out = append(out, &rows[i])
		}
	case KindTemplate:
		if filter.Side != "" {
			q = q.Where("side = ?", filter.Side)
		}
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if term := strings.TrimSpace(filter.Search); term != "" {
			q = q.Where(db.CaseInsensitiveLikeExpr(s.db, "name"), db.NormalizeLikePattern(s.db, term))
		}
		var rows []models.Template
		if errFind := q.Order("created_at ASC, id ASC").Find(&rows).Error; errFind != nil {
			return nil, apperr.Persistence(op, errFind)
		}
		out = make([]Record, 0, len(rows))
		for i := range rows {
			out = append(out, &rows[i])
		}
	case KindGeneratedCard:
		if filter.EmployeeID != "" {
			q = q.Where("employee_id = ?", filter.EmployeeID)
		}
		var rows []models.GeneratedCard
		if errFind := q.Order("generated_at DESC, id DESC").Find(&rows).Error; errFind != nil {
			return nil, apperr.Persistence(op, errFind)
		}
		out = make([]Record, 0, len(rows))
		for i := range rows {
			out = append(out, &rows[i])
		}
	case KindTransaction:
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		var rows []models.PaymentTransaction
		if errFind := q.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
			return nil, apperr.Persistence(op, errFind)
		}
		out = make([]Record, 0, len(rows))
		for i := range rows {
			out = append(out, &rows[i])
		}
	}
	return out, nil
}

// Count returns the number of records of kind owned by the tenant.
func (s *GormStore) Count(ctx context.Context, kind Kind, tenantID string) (int64, error) {
	const op = "gorm store: count"
	if err := s.ready(op); err != nil {
		return 0, err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return 0, err
	}
	rec, err := newModel(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	if errCount := s.db.WithContext(ctx).Model(rec).Where("tenant_id = ?", tenantID).Count(&count).Error; errCount != nil {
		return 0, apperr.Persistence(op, errCount)
	}
	return count, nil
}

// Create inserts a tenant-owned record.
func (s *GormStore) Create(ctx context.Context, tenantID string, rec Record) error {
	const op = "gorm store: create"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return err
	}
	if entry, ok := rec.(*models.GeneratedCard); ok {
		return s.RecordGeneratedCard(ctx, tenantID, entry)
	}
	if err := prepareCreate(tenantID, rec, s.clock()); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errTenant := tenantExists(tx, tenantID); errTenant != nil {
			return errTenant
		}
		if employee, ok := rec.(*models.Employee); ok {
			if errDup := employeeEmailFree(tx, tenantID, employee.Email, ""); errDup != nil {
				return errDup
			}
		}
		if errCreate := tx.Create(rec).Error; errCreate != nil {
			return translateWriteError(op, rec, errCreate)
		}
		return nil
	})
}

// Update replaces a tenant-owned record.
func (s *GormStore) Update(ctx context.Context, tenantID string, rec Record) error {
	const op = "gorm store: update"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return err
	}
	kind, err := KindOf(rec)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored, errNew := newModel(kind)
		if errNew != nil {
			return errNew
		}
		if errFind := lockForUpdate(tx).
			Where("tenant_id = ? AND id = ?", tenantID, rec.EntityID()).
			Take(stored).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFound(kind, rec.EntityID())
			}
			return apperr.Persistence(op, errFind)
		}
		merged, errMerge := prepareUpdate(tenantID, rec, stored, s.clock())
		if errMerge != nil {
			return errMerge
		}
		if employee, ok := merged.(*models.Employee); ok {
			if errDup := employeeEmailFree(tx, tenantID, employee.Email, employee.ID); errDup != nil {
				return errDup
			}
		}
		if errSave := tx.Select("*").Omit("created_at").
			Where("tenant_id = ?", tenantID).
			Updates(merged).Error; errSave != nil {
			return translateWriteError(op, merged, errSave)
		}
		return nil
	})
}

// Delete removes a tenant-owned record.
func (s *GormStore) Delete(ctx context.Context, kind Kind, tenantID, id string) error {
	const op = "gorm store: delete"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return err
	}
	switch kind {
	case KindGeneratedCard:
		return apperr.Validation(op, "generated cards are append-only")
	case KindTransaction:
		return apperr.Validation(op, "transactions cannot be deleted")
	}
	rec, err := newModel(kind)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(rec)
	if res.Error != nil {
		return apperr.Persistence(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(kind, id)
	}
	return nil
}

// ActivateTemplate clears the active flag for side and sets it on templateID in one transaction.
func (s *GormStore) ActivateTemplate(ctx context.Context, tenantID, templateID string, side models.TemplateSide) error {
	const op = "gorm store: activate template"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return err
	}
	side, ok := models.ParseTemplateSide(string(side))
	if !ok {
		return apperr.Validation(op, "template side must be front or back")
	}
	now := s.clock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.Template
		if errFind := lockForUpdate(tx).
			Where("tenant_id = ? AND id = ? AND side = ?", tenantID, templateID, side).
			Take(&target).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFound(KindTemplate, templateID)
			}
			return apperr.Persistence(op, errFind)
		}
		if errClear := tx.Model(&models.Template{}).
			Where("tenant_id = ? AND side = ? AND is_active = ?", tenantID, side, true).
			Updates(map[string]any{"is_active": false, "updated_at": now}).Error; errClear != nil {
			return apperr.Persistence(op, errClear)
		}
		if errSet := tx.Model(&models.Template{}).
			Where("tenant_id = ? AND id = ?", tenantID, templateID).
			Updates(map[string]any{"is_active": true, "updated_at": now}).Error; errSet != nil {
			if db.IsUniqueViolation(errSet) {
				return apperr.Conflict(apperr.CodeActivationRace, op, "another activation for side %q is in progress", side)
			}
			return apperr.Persistence(op, errSet)
		}
		return nil
	})
}

// RecordGeneratedCard appends a log entry and prunes entries beyond the retention cap.
func (s *GormStore) RecordGeneratedCard(ctx context.Context, tenantID string, entry *models.GeneratedCard) error {
	const op = "gorm store: record generated card"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := requireTenant(op, tenantID); err != nil {
		return err
	}
	if err := prepareGeneratedCard(tenantID, entry, s.clock()); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errTenant := tenantExists(tx, tenantID); errTenant != nil {
			return errTenant
		}
		if errCreate := tx.Create(entry).Error; errCreate != nil {
			return apperr.Persistence(op, errCreate)
		}
		var stale []string
		if errFind := tx.Model(&models.GeneratedCard{}).
			Where("tenant_id = ?", tenantID).
			Order("generated_at DESC, id DESC").
			Offset(s.retention).
			Limit(1 << 20).
			Pluck("id", &stale).Error; errFind != nil {
			return apperr.Persistence(op, errFind)
		}
		if len(stale) == 0 {
			return nil
		}
		if errPrune := tx.Where("tenant_id = ? AND id IN ?", tenantID, stale).
			Delete(&models.GeneratedCard{}).Error; errPrune != nil {
			return apperr.Persistence(op, errPrune)
		}
		return nil
	})
}

// CreateTenant inserts a tenant. Duplicate slugs yield a conflict.
func (s *GormStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	const op = "gorm store: create tenant"
	if err := s.ready(op); err != nil {
		return err
	}
	if err := prepareTenant(tenant, s.clock()); err != nil {
		return err
	}
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("slug = ?", tenant.Slug).Count(&count).Error; errCount != nil {
		return apperr.Persistence(op, errCount)
	}
	if count > 0 {
		return slugConflict(tenant.Slug)
	}
	if errCreate := s.db.WithContext(ctx).Create(tenant).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return slugConflict(tenant.Slug)
		}
		return apperr.Persistence(op, errCreate)
	}
	return nil
}

// GetTenant loads a tenant by id.
func (s *GormStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	return s.findTenant(ctx, "id = ?", id)
}

// GetTenantBySlug loads a tenant by slug.
func (s *GormStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.findTenant(ctx, "slug = ?", strings.ToLower(strings.TrimSpace(slug)))
}

func (s *GormStore) findTenant(ctx context.Context, query, key string) (*models.Tenant, error) {
	const op = "gorm store: get tenant"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, tenantNotFound(key)
	}
	var tenant models.Tenant
	if errFind := s.db.WithContext(ctx).Where(query, key).Take(&tenant).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, tenantNotFound(key)
		}
		return nil, apperr.Persistence(op, errFind)
	}
	return &tenant, nil
}

// ListTenants returns every tenant ordered by creation.
func (s *GormStore) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	const op = "gorm store: list tenants"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	var rows []models.Tenant
	if errFind := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; errFind != nil {
		return nil, apperr.Persistence(op, errFind)
	}
	return rows, nil
}

// ExpireSubscriptions flips lapsed active subscriptions to inactive.
func (s *GormStore) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	const op = "gorm store: expire subscriptions"
	if err := s.ready(op); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("subscription_status = ? AND subscription_expires_at IS NOT NULL AND subscription_expires_at <= ?", models.SubscriptionActive, now.UTC()).
		Updates(map[string]any{"subscription_status": models.SubscriptionInactive, "updated_at": now.UTC()})
	if res.Error != nil {
		return 0, apperr.Persistence(op, res.Error)
	}
	return int(res.RowsAffected), nil
}

// ListPlans returns all plans in display order.
func (s *GormStore) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "gorm store: list plans"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	var plans []models.Plan
	if errFind := s.db.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&plans).Error; errFind != nil {
		return nil, apperr.Persistence(op, errFind)
	}
	return plans, nil
}

// GetPlan loads a plan by id.
func (s *GormStore) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	const op = "gorm store: get plan"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	var plan models.Plan
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).Take(&plan).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, planNotFound(id)
		}
		return nil, apperr.Persistence(op, errFind)
	}
	return &plan, nil
}

// SavePlan upserts a plan.
func (s *GormStore) SavePlan(ctx context.Context, plan *models.Plan) error {
	const op = "gorm store: save plan"
	if err := s.ready(op); err != nil {
		return err
	}
	if plan == nil || strings.TrimSpace(plan.ID) == "" {
		return apperr.Validation(op, "plan id is required")
	}
	now := s.clock()
	stamp(&plan.CreatedAt, &plan.UpdatedAt, now)
	plan.UpdatedAt = now
	if errSave := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "price_monthly", "price_yearly",
			"max_employees", "max_templates", "max_storage_mb",
			"sort_order", "is_active", "updated_at",
		}),
	}).Create(plan).Error; errSave != nil {
		return apperr.Persistence(op, errSave)
	}
	return nil
}

// FindTransaction resolves a transaction by order id.
func (s *GormStore) FindTransaction(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	const op = "gorm store: find transaction"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, notFound(KindTransaction, orderID)
	}
	var txn models.PaymentTransaction
	if errFind := s.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&txn).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFound(KindTransaction, orderID)
		}
		return nil, apperr.Persistence(op, errFind)
	}
	return &txn, nil
}

// UpdatePayment locks the transaction and its tenant, applies fn and writes both in one
// database transaction. The transaction row is only written while it still holds the
// status fn observed, so concurrent deliveries cannot both apply.
func (s *GormStore) UpdatePayment(ctx context.Context, orderID string, fn PaymentMutator) error {
	const op = "gorm store: update payment"
	if err := s.ready(op); err != nil {
		return err
	}
	if fn == nil {
		return apperr.Validation(op, "nil mutator")
	}
	orderID = strings.TrimSpace(orderID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.PaymentTransaction
		if errFind := lockForUpdate(tx).Where("order_id = ?", orderID).Take(&txn).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFound(KindTransaction, orderID)
			}
			return apperr.Persistence(op, errFind)
		}
		var tenant models.Tenant
		if errFind := lockForUpdate(tx).Where("id = ?", txn.TenantID).Take(&tenant).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return tenantNotFound(txn.TenantID)
			}
			return apperr.Persistence(op, errFind)
		}

		observed := txn.Status
		change, errApply := fn(&txn, &tenant)
		if errApply != nil {
			return errApply
		}
		now := s.clock()

		if change.Transaction {
			res := tx.Model(&models.PaymentTransaction{}).
				Where("id = ? AND status = ?", txn.ID, observed).
				Updates(map[string]any{
					"status":           txn.Status,
					"external_id":      txn.ExternalID,
					"gateway_response": txn.GatewayResponse,
					"completed_at":     txn.CompletedAt,
					"updated_at":       now,
				})
			if res.Error != nil {
				return apperr.Persistence(op, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.Conflict(apperr.CodeDuplicate, op, "transaction %q changed concurrently", orderID)
			}
		}
		if change.Tenant {
			if errUpdate := tx.Model(&models.Tenant{}).
				Where("id = ?", tenant.ID).
				Updates(map[string]any{
					"plan_id":                 tenant.PlanID,
					"subscription_status":     tenant.SubscriptionStatus,
					"subscription_expires_at": tenant.SubscriptionExpiresAt,
					"subscription_id":         tenant.SubscriptionID,
					"updated_at":              now,
				}).Error; errUpdate != nil {
				return apperr.Persistence(op, errUpdate)
			}
		}
		return nil
	})
}

func tenantExists(tx *gorm.DB, tenantID string) error {
	var count int64
	if errCount := tx.Model(&models.Tenant{}).Where("id = ?", tenantID).Count(&count).Error; errCount != nil {
		return apperr.Persistence("gorm store: check tenant", errCount)
	}
	if count == 0 {
		return tenantNotFound(tenantID)
	}
	return nil
}

func employeeEmailFree(tx *gorm.DB, tenantID, email, exceptID string) error {
	q := tx.Model(&models.Employee{}).Where("tenant_id = ? AND email = ?", tenantID, email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if errCount := q.Count(&count).Error; errCount != nil {
		return apperr.Persistence("gorm store: check email", errCount)
	}
	if count > 0 {
		return emailConflict(email)
	}
	return nil
}

func translateWriteError(op string, rec Record, err error) error {
	if !db.IsUniqueViolation(err) {
		return apperr.Persistence(op, err)
	}
	switch r := rec.(type) {
	case *models.Employee:
		return emailConflict(r.Email)
	case *models.PaymentTransaction:
		return apperr.Conflict(apperr.CodeDuplicate, op, "order id %q already exists", r.OrderID)
	default:
		return apperr.Conflict(apperr.CodeDuplicate, op, "duplicate %T", rec)
	}
}
