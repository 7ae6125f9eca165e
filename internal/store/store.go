// Package store is the tenant-scoped persistence gateway. One Storage
// implementation is chosen at startup and shared by every caller.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/models"
)

// Kind names a tenant-owned entity collection.
type Kind string

// Kind constants for the generic CRUD verbs.
const (
	KindEmployee      Kind = "employees"
	KindTemplate      Kind = "templates"
	KindGeneratedCard Kind = "generated_cards"
	KindTransaction   Kind = "transactions"
)

// Backend names reported by Storage.Backend.
const (
	BackendSQL  = "sql"
	BackendFile = "file"
)

// Record is a tenant-owned entity handled by the generic verbs:
// *models.Employee, *models.Template, *models.GeneratedCard or *models.PaymentTransaction.
type Record interface {
	EntityID() string
}

// Filter narrows List results. Fields that do not apply to a kind are ignored.
type Filter struct {
	Search     string                   // Employees: name or email contains. Templates: name contains.
	Email      string                   // Employees: exact email, case-insensitive.
	Side       models.TemplateSide      // Templates: side.
	ActiveOnly bool                     // Templates: only active ones.
	EmployeeID string                   // Generated cards: card holder.
	Status     models.TransactionStatus // Transactions: status.
	Limit      int                      // Zero means no limit.
	Offset     int
}

// PaymentUpdate tells UpdatePayment which of the loaded rows a mutator changed.
type PaymentUpdate struct {
	Transaction bool
	Tenant      bool
}

// PaymentMutator inspects and mutates a transaction and its owning tenant.
// It runs while both are locked against concurrent reconciliation.
type PaymentMutator func(txn *models.PaymentTransaction, tenant *models.Tenant) (PaymentUpdate, error)

// Storage is the single persistence contract used by the rest of the system.
// All tenant-owned operations require a non-empty tenant id.
type Storage interface {
	Get(ctx context.Context, kind Kind, tenantID, id string) (Record, error)
	List(ctx context.Context, kind Kind, tenantID string, filter Filter) ([]Record, error)
	Create(ctx context.Context, tenantID string, rec Record) error
	Update(ctx context.Context, tenantID string, rec Record) error
	Delete(ctx context.Context, kind Kind, tenantID, id string) error
	Count(ctx context.Context, kind Kind, tenantID string) (int64, error)

	// ActivateTemplate makes templateID the only active template for side.
	ActivateTemplate(ctx context.Context, tenantID, templateID string, side models.TemplateSide) error
	// RecordGeneratedCard appends to the generated card log and prunes it to the retention cap.
	RecordGeneratedCard(ctx context.Context, tenantID string, entry *models.GeneratedCard) error

	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	// ExpireSubscriptions marks active subscriptions that ended at or before now as inactive.
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)

	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	SavePlan(ctx context.Context, plan *models.Plan) error

	// FindTransaction resolves a transaction by its gateway order id across tenants.
	FindTransaction(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
	// UpdatePayment applies fn to the transaction for orderID and its tenant and persists the result together.
	UpdatePayment(ctx context.Context, orderID string, fn PaymentMutator) error

	Backend() string
	Close() error
}

// GetAs fetches a record and asserts its concrete type.
func GetAs[T Record](ctx context.Context, s Storage, kind Kind, tenantID, id string) (T, error) {
	var zero T
	rec, err := s.Get(ctx, kind, tenantID, id)
	if err != nil {
		return zero, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("store: get %s: unexpected record type %T", kind, rec)
	}
	return typed, nil
}

// ListAs lists records and asserts their concrete type.
func ListAs[T Record](ctx context.Context, s Storage, kind Kind, tenantID string, filter Filter) ([]T, error) {
	recs, err := s.List(ctx, kind, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		typed, ok := rec.(T)
		if !ok {
			return nil, fmt.Errorf("store: list %s: unexpected record type %T", kind, rec)
		}
		out = append(out, typed)
	}
	return out, nil
}

// KindOf reports the collection a record belongs to.
func KindOf(rec Record) (Kind, error) {
	switch rec.(type) {
	case *models.Employee:
		return KindEmployee, nil
	case *models.Template:
		return KindTemplate, nil
	case *models.GeneratedCard:
		return KindGeneratedCard, nil
	case *models.PaymentTransaction:
		return KindTransaction, nil
	default:
		return "", apperr.Validation("store", "unsupported record type %T", rec)
	}
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

func requireTenant(op, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperr.Validation(op, "tenant id is required")
	}
	return nil
}

func validKind(op string, kind Kind) error {
	switch kind {
	case KindEmployee, KindTemplate, KindGeneratedCard, KindTransaction:
		return nil
	default:
		return apperr.Validation(op, "unknown entity kind %q", kind)
	}
}

func notFound(kind Kind, id string) error {
	code := apperr.CodeRecordNotFound
	switch kind {
	case KindEmployee:
		code = apperr.CodeEmployeeNotFound
	case KindTemplate:
		code = apperr.CodeTemplateNotFound
	case KindTransaction:
		code = apperr.CodeTransactionNotFound
	}
	return apperr.NotFound(code, "store", "%s %q not found", strings.TrimSuffix(string(kind), "s"), id)
}

func emailConflict(email string) error {
	return apperr.Conflict(apperr.CodeEmailTaken, "store", "employee email %q already exists", email)
}

func slugConflict(slug string) error {
	return apperr.Conflict(apperr.CodeSlugTaken, "store", "tenant slug %q already exists", slug)
}

func tenantNotFound(key string) error {
	return apperr.NotFound(apperr.CodeTenantNotFound, "store", "tenant %q not found", key)
}

func planNotFound(id string) error {
	return apperr.NotFound(apperr.CodePlanNotFound, "store", "plan %q not found", id)
}

// prepareCreate assigns ids, ownership and defaults before a record is persisted.
func prepareCreate(tenantID string, rec Record, now time.Time) error {
	const op = "store: create"
	switch r := rec.(type) {
	case *models.Employee:
		if errOwner := claimOwner(op, &r.TenantID, tenantID); errOwner != nil {
			return errOwner
		}
		r.Email = models.NormalizeEmail(r.Email)
		if r.Email == "" {
			return apperr.Validation(op, "employee email is required")
		}
		assignID(&r.ID)
		stamp(&r.CreatedAt, &r.UpdatedAt, now)
	case *models.Template:
		if errOwner := claimOwner(op, &r.TenantID, tenantID); errOwner != nil {
			return errOwner
		}
		side, ok := models.ParseTemplateSide(string(r.Side))
		if !ok {
			return apperr.Validation(op, "template side must be front or back")
		}
		r.Side = side
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return apperr.Validation(op, "template name is required")
		}
		if len(r.Fields) == 0 {
			r.Fields = models.DefaultFieldLayout()
		}
		// Activation goes through ActivateTemplate only.
		r.IsActive = false
		assignID(&r.ID)
		stamp(&r.CreatedAt, &r.UpdatedAt, now)
	case *models.GeneratedCard:
		return prepareGeneratedCard(tenantID, r, now)
	case *models.PaymentTransaction:
		if errOwner := claimOwner(op, &r.TenantID, tenantID); errOwner != nil {
			return errOwner
		}
		r.OrderID = strings.TrimSpace(r.OrderID)
		if r.OrderID == "" {
			return apperr.Validation(op, "transaction order id is required")
		}
		if r.Status == "" {
			r.Status = models.TransactionPending
		}
		switch r.Status {
		case models.TransactionPending, models.TransactionCompleted, models.TransactionFailed:
		default:
			return apperr.Validation(op, "unknown transaction status %q", r.Status)
		}
		if _, ok := models.ParseBillingCycle(string(r.BillingCycle)); !ok {
			return apperr.Validation(op, "unknown billing cycle %q", r.BillingCycle)
		}
		assignID(&r.ID)
		stamp(&r.CreatedAt, &r.UpdatedAt, now)
	default:
		return apperr.Validation(op, "unsupported record type %T", rec)
	}
	return nil
}

func prepareGeneratedCard(tenantID string, entry *models.GeneratedCard, now time.Time) error {
	const op = "store: record generated card"
	if entry == nil {
		return apperr.Validation(op, "nil entry")
	}
	if errOwner := claimOwner(op, &entry.TenantID, tenantID); errOwner != nil {
		return errOwner
	}
	if strings.TrimSpace(entry.EmployeeID) == "" {
		return apperr.Validation(op, "employee id is required")
	}
	assignID(&entry.ID)
	if entry.GeneratedAt.IsZero() {
		entry.GeneratedAt = now
	}
	return nil
}

// prepareUpdate validates an update and merges it onto the stored record.
// The returned record is what must be persisted.
func prepareUpdate(tenantID string, incoming, stored Record, now time.Time) (Record, error) {
	const op = "store: update"
	switch in := incoming.(type) {
	case *models.Employee:
		cur := stored.(*models.Employee)
		in.TenantID = cur.TenantID
		in.Email = models.NormalizeEmail(in.Email)
		if in.Email == "" {
			return nil, apperr.Validation(op, "employee email is required")
		}
		in.CreatedAt = cur.CreatedAt
		in.UpdatedAt = now
		return in, nil
	case *models.Template:
		cur := stored.(*models.Template)
		in.TenantID = cur.TenantID
		side, ok := models.ParseTemplateSide(string(in.Side))
		if !ok {
			return nil, apperr.Validation(op, "template side must be front or back")
		}
		in.Side = side
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" {
			return nil, apperr.Validation(op, "template name is required")
		}
		if in.Fields == nil {
			in.Fields = cur.Fields
		}
		// Moving a template to the other side drops its active flag.
		in.IsActive = cur.IsActive && cur.Side == in.Side
		in.CreatedAt = cur.CreatedAt
		in.UpdatedAt = now
		return in, nil
	case *models.GeneratedCard:
		return nil, apperr.Validation(op, "generated cards are append-only")
	case *models.PaymentTransaction:
		return nil, apperr.Validation(op, "transactions change only through payment reconciliation")
	default:
		return nil, apperr.Validation(op, "unsupported record type %T", incoming)
	}
}

func prepareTenant(tenant *models.Tenant, now time.Time) error {
	const op = "store: create tenant"
	if tenant == nil {
		return apperr.Validation(op, "nil tenant")
	}
	tenant.Slug = strings.ToLower(strings.TrimSpace(tenant.Slug))
	tenant.Name = strings.TrimSpace(tenant.Name)
	if tenant.Slug == "" || tenant.Name == "" {
		return apperr.Validation(op, "tenant slug and name are required")
	}
	tenant.AdminEmail = models.NormalizeEmail(tenant.AdminEmail)
	if tenant.PlanID == "" {
		tenant.PlanID = models.PlanFree
	}
	if tenant.SubscriptionStatus == "" {
		tenant.SubscriptionStatus = models.SubscriptionInactive
	}
	assignID(&tenant.ID)
	stamp(&tenant.CreatedAt, &tenant.UpdatedAt, now)
	return nil
}

func claimOwner(op string, owner *string, tenantID string) error {
	if *owner != "" && *owner != tenantID {
		return apperr.Validation(op, "record belongs to another tenant")
	}
	*owner = tenantID
	return nil
}

func assignID(id *string) {
	if strings.TrimSpace(*id) == "" {
		*id = NewID()
	}
}

func stamp(createdAt, updatedAt *time.Time, now time.Time) {
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}

// paginate applies filter.Offset and filter.Limit to an already ordered slice.
func paginate[T any](items []T, filter Filter) []T {
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return items[:0]
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items
}
