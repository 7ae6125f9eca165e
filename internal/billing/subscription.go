// Package billing creates subscription payments, enforces plan limits and
// reconciles gateway callbacks against stored transactions.
package billing

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/gateway"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/pending"
	"github.com/router-for-me/BizCardCloud/internal/store"
	log "github.com/sirupsen/logrus"
)

// Limit types accepted by CheckLimit.
const (
	LimitEmployees = "employees"
	LimitTemplates = "templates"
)

// PendingStore keeps pending payments between redirect and callback.
type PendingStore interface {
	Put(ctx context.Context, p pending.Payment) error
	Get(ctx context.Context, orderID string) (*pending.Payment, error)
	Delete(ctx context.Context, orderID string) error
}

// Failure is returned instead of an error when the payment cannot be initiated
// for a reason the admin can act on.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubscriptionResult carries either the payment payload or a Failure.
type SubscriptionResult struct {
	Transaction *models.PaymentTransaction `json:"transaction,omitempty"`
	Payment     *gateway.PaymentRequest    `json:"payment,omitempty"`
	Failure     *Failure                   `json:"failure,omitempty"`
}

// OK reports whether the payment was initiated.
func (r SubscriptionResult) OK() bool { return r.Failure == nil && r.Payment != nil }

// SubscriptionManager orchestrates plan lookups, payment initiation and limit checks.
type SubscriptionManager struct {
	store       store.Storage
	gateway     *gateway.Client
	pending     PendingStore
	now         func() time.Time
	createLocks *store.KeyedMutex
}

// NewSubscriptionManager wires the manager. pending may be nil.
func NewSubscriptionManager(s store.Storage, gw *gateway.Client, p PendingStore) *SubscriptionManager {
	return &SubscriptionManager{store: s, gateway: gw, pending: p, now: time.Now, createLocks: store.NewKeyedMutex()}
}

// CreateSubscription starts a payment for planID billed per cycle.
// Gateway and configuration problems come back as a Failure; lookup, validation
// and storage problems come back as errors.
func (m *SubscriptionManager) CreateSubscription(ctx context.Context, tenantID, planID, cycle string) (SubscriptionResult, error) {
	const op = "billing: create subscription"
	if _, err := m.store.GetTenant(ctx, tenantID); err != nil {
		return SubscriptionResult{}, err
	}
	plan, err := m.store.GetPlan(ctx, strings.TrimSpace(planID))
	if err != nil {
		return SubscriptionResult{}, err
	}
	if !plan.IsActive {
		return SubscriptionResult{}, apperr.NotFound(apperr.CodePlanNotFound, op, "plan %q is not available", plan.ID)
	}
	billingCycle, ok := models.ParseBillingCycle(cycle)
	if !ok {
		return SubscriptionResult{}, apperr.Validation(op, "billing cycle must be monthly or yearly")
	}
	amount, _ := plan.PriceFor(billingCycle)
	if !amount.IsPositive() {
		return SubscriptionResult{}, apperr.Validation(op, "plan %q requires no payment", plan.ID)
	}

	req, errBuild := m.gateway.BuildPaymentRequest(amount, m.gateway.Currency(), tenantID, plan.ID, billingCycle)
	if errBuild != nil {
		switch apperr.KindOf(errBuild) {
		case apperr.KindConfiguration, apperr.KindGateway:
			log.WithError(errBuild).WithField("tenant_id", tenantID).Warn("billing: payment initiation failed")
			return SubscriptionResult{Failure: &Failure{Code: apperr.CodeOf(errBuild), Message: apperr.PublicMessage(errBuild)}}, nil
		default:
			return SubscriptionResult{}, errBuild
		}
	}

	record := pending.Payment{
		OrderID:      req.OrderID,
		TenantID:     tenantID,
		PlanID:       plan.ID,
		BillingCycle: billingCycle,
		Amount:       amount,
		Currency:     req.Payload.Currency,
		CreatedAt:    m.now().UTC(),
	}
	// The pending record goes first so a callback racing the insert below can still resolve the order.
	if m.pending != nil {
		if errPut := m.pending.Put(ctx, record); errPut != nil {
			log.WithError(errPut).WithField("order_id", req.OrderID).Warn("billing: store pending payment failed")
		}
	}
	txn := record.Transaction(gateway.Name)
	if errCreate := m.store.Create(ctx, tenantID, txn); errCreate != nil {
		if apperr.Is(errCreate, apperr.KindConflict) {
			// A callback already materialized the transaction from the pending record.
			if existing, errFind := m.store.FindTransaction(ctx, req.OrderID); errFind == nil {
				return SubscriptionResult{Transaction: existing, Payment: req}, nil
			}
		}
		return SubscriptionResult{}, errCreate
	}

	log.WithFields(log.Fields{
		"tenant_id": tenantID,
		"plan_id":   plan.ID,
		"cycle":     billingCycle,
		"order_id":  req.OrderID,
		"amount":    req.Payload.Amount,
	}).Info("billing: subscription payment initiated")
	return SubscriptionResult{Transaction: txn, Payment: req}, nil
}

// HasActiveSubscription reports whether the tenant's paid subscription is current.
// Unknown tenants have none.
func (m *SubscriptionManager) HasActiveSubscription(ctx context.Context, tenantID string) (bool, error) {
	tenant, err := m.store.GetTenant(ctx, tenantID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return tenant.HasActiveSubscription(m.now()), nil
}

// UsageItem compares a count against a plan limit. Limit -1 means unlimited.
type UsageItem struct {
	Used  int64 `json:"used"`
	Limit int   `json:"limit"`
}

// Allows reports whether one more item fits.
func (u UsageItem) Allows() bool {
	return u.Limit == models.Unlimited || u.Used < int64(u.Limit)
}

// Usage summarizes a tenant's plan and consumption for the billing dashboard.
type Usage struct {
	PlanID             string                    `json:"plan_id"`
	PlanName           string                    `json:"plan_name"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
	ExpiresAt          *time.Time                `json:"subscription_expires_at"`
	Active             bool                      `json:"active"`
	Employees          UsageItem                 `json:"employees"`
	Templates          UsageItem                 `json:"templates"`
	MaxStorageMB       int                       `json:"max_storage_mb"`
}

// Usage returns the tenant's plan limits and current counts.
func (m *SubscriptionManager) Usage(ctx context.Context, tenantID string) (Usage, error) {
	tenant, plan, err := m.tenantPlan(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}
	employees, err := m.store.Count(ctx, store.KindEmployee, tenantID)
	if err != nil {
		return Usage{}, err
	}
	templates, err := m.store.Count(ctx, store.KindTemplate, tenantID)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		SubscriptionStatus: tenant.SubscriptionStatus,
		ExpiresAt:          tenant.SubscriptionExpiresAt,
		Active:             tenant.HasActiveSubscription(m.now()),
		Employees:          UsageItem{Used: employees, Limit: plan.MaxEmployees},
		Templates:          UsageItem{Used: templates, Limit: plan.MaxTemplates},
		MaxStorageMB:       plan.MaxStorageMB,
	}, nil
}

// CheckLimit reports whether the tenant may create one more item of limitType.
// Unknown limit types are allowed; a missing tenant or plan is not.
func (m *SubscriptionManager) CheckLimit(ctx context.Context, tenantID, limitType string) (bool, error) {
	item, known, err := m.limitUsage(ctx, tenantID, limitType)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	if !known {
		return true, nil
	}
	return item.Allows(), nil
}

// EnsureCanCreate returns a limit_exceeded conflict when the plan is full.
func (m *SubscriptionManager) EnsureCanCreate(ctx context.Context, tenantID, limitType string) error {
	item, known, err := m.limitUsage(ctx, tenantID, limitType)
	if err != nil || !known {
		return err
	}
	if !item.Allows() {
		return apperr.Conflict(apperr.CodeLimitExceeded, "billing: check limit",
			"plan limit reached: %d of %d %s", item.Used, item.Limit, normalizeLimitType(limitType))
	}
	return nil
}

// ReserveCreate checks the plan limit while holding the tenant's creation lock.
// On success the lock stays held until release is called, which the caller does
// once the record is persisted or the attempt failed. Concurrent creations in
// this process therefore cannot overshoot the limit.
func (m *SubscriptionManager) ReserveCreate(ctx context.Context, tenantID, limitType string) (release func(), err error) {
	unlock := m.createLocks.Lock(tenantID + "/" + normalizeLimitType(limitType))
	if errLimit := m.EnsureCanCreate(ctx, tenantID, limitType); errLimit != nil {
		unlock()
		return nil, errLimit
	}
	return unlock, nil
}

func (m *SubscriptionManager) limitUsage(ctx context.Context, tenantID, limitType string) (UsageItem, bool, error) {
	var kind store.Kind
	switch normalizeLimitType(limitType) {
	case LimitEmployees:
		kind = store.KindEmployee
	case LimitTemplates:
		kind = store.KindTemplate
	default:
		return UsageItem{}, false, nil
	}
	_, plan, err := m.tenantPlan(ctx, tenantID)
	if err != nil {
		return UsageItem{}, true, err
	}
	limit := plan.MaxEmployees
	if kind == store.KindTemplate {
		limit = plan.MaxTemplates
	}
	if limit == models.Unlimited {
		return UsageItem{Limit: limit}, true, nil
	}
	count, err := m.store.Count(ctx, kind, tenantID)
	if err != nil {
		return UsageItem{}, true, err
	}
	return UsageItem{Used: count, Limit: limit}, true, nil
}

func (m *SubscriptionManager) tenantPlan(ctx context.Context, tenantID string) (*models.Tenant, *models.Plan, error) {
	tenant, err := m.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	planID := tenant.PlanID
	if planID == "" {
		planID = models.PlanFree
	}
	plan, err := m.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	return tenant, plan, nil
}

func normalizeLimitType(limitType string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(limitType)), "max_")
}
