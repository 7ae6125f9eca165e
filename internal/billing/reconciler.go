package billing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/gateway"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Outcome codes returned to the gateway in the acknowledgement.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomePending   = "pending"
	OutcomeDuplicate = "duplicate"
)

// Outcome describes what a callback did.
type Outcome struct {
	Code    string                   `json:"code"`
	OrderID string                   `json:"order_id,omitempty"`
	Status  models.TransactionStatus `json:"status,omitempty"`
}

// WebhookReconciler applies gateway callbacks to transactions and tenants.
type WebhookReconciler struct {
	store   store.Storage
	gateway *gateway.Client
	pending PendingStore
	now     func() time.Time
}

// NewWebhookReconciler wires the reconciler. pending may be nil.
func NewWebhookReconciler(s store.Storage, gw *gateway.Client, p PendingStore) *WebhookReconciler {
	return &WebhookReconciler{store: s, gateway: gw, pending: p, now: time.Now}
}

// HandleCallback verifies cb and applies it at most once per order id.
// A repeated callback for a terminal transaction is a no-op.
func (r *WebhookReconciler) HandleCallback(ctx context.Context, cb gateway.Callback) (Outcome, error) {
	const op = "billing: handle callback"
	orderID := strings.TrimSpace(cb.OrderID)
	if orderID == "" {
		return Outcome{}, apperr.NotFound(apperr.CodeTransactionNotFound, op, "callback carries no order id")
	}
	if errSig := r.verifySignature(cb); errSig != nil {
		return Outcome{OrderID: orderID}, errSig
	}

	outcome := Outcome{OrderID: orderID}
	mutate := r.mutator(cb, &outcome)

	errUpdate := r.store.UpdatePayment(ctx, orderID, mutate)
	if apperr.CodeOf(errUpdate) == apperr.CodeTransactionNotFound {
		if errMaterialize := r.materialize(ctx, orderID); errMaterialize != nil {
			return outcome, errMaterialize
		}
		errUpdate = r.store.UpdatePayment(ctx, orderID, mutate)
	}
	if errUpdate != nil {
		if apperr.CodeOf(errUpdate) == apperr.CodeDuplicate {
			// A concurrent delivery applied this order first.
			outcome.Code = OutcomeDuplicate
			return outcome, nil
		}
		return outcome, errUpdate
	}

	if outcome.Status.Terminal() && outcome.Code != OutcomeDuplicate && r.pending != nil {
		if errDel := r.pending.Delete(ctx, orderID); errDel != nil {
			log.WithError(errDel).WithField("order_id", orderID).Warn("billing: clear pending payment failed")
		}
	}
	log.WithFields(log.Fields{
		"order_id": orderID,
		"status":   outcome.Status,
		"outcome":  outcome.Code,
	}).Info("billing: callback reconciled")
	return outcome, nil
}

func (r *WebhookReconciler) verifySignature(cb gateway.Callback) error {
	secret := r.gateway.SecureKey()
	if cb.Signature == "" || secret == "" {
		return nil
	}
	expected := cb.ExpectedSignature(r.gateway.MerchantID(), r.gateway.TerminalID(), r.gateway.Currency(), secret)
	if !gateway.Verify(expected, cb.Signature) {
		return apperr.Signature("billing: verify callback", "signature mismatch for order %q", cb.OrderID)
	}
	return nil
}

// materialize creates the pending transaction from the short-lived pending record.
func (r *WebhookReconciler) materialize(ctx context.Context, orderID string) error {
	const op = "billing: materialize transaction"
	if r.pending == nil {
		return apperr.NotFound(apperr.CodeTransactionNotFound, op, "transaction %q not found", orderID)
	}
	record, err := r.pending.Get(ctx, orderID)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if record == nil {
		return apperr.NotFound(apperr.CodeTransactionNotFound, op, "transaction %q not found", orderID)
	}
	txn := record.Transaction(gateway.Name)
	if errCreate := r.store.Create(ctx, record.TenantID, txn); errCreate != nil && !apperr.Is(errCreate, apperr.KindConflict) {
		return errCreate
	}
	log.WithField("order_id", orderID).Info("billing: transaction materialized from pending payment")
	return nil
}

func (r *WebhookReconciler) mutator(cb gateway.Callback, outcome *Outcome) store.PaymentMutator {
	return func(txn *models.PaymentTransaction, tenant *models.Tenant) (store.PaymentUpdate, error) {
		outcome.Status = txn.Status
		if txn.Status.Terminal() {
			outcome.Code = OutcomeDuplicate
			return store.PaymentUpdate{}, nil
		}

		next := gateway.MapStatus(cb.Status)
		if next == models.TransactionCompleted {
			if errAmount := checkAmount(cb.Amount, txn.Amount); errAmount != nil {
				return store.PaymentUpdate{}, errAmount
			}
		}

		now := r.now().UTC()
		if raw, errMarshal := json.Marshal(cb.Raw); errMarshal == nil && cb.Raw != nil {
			txn.GatewayResponse = datatypes.JSON(raw)
		}
		if cb.TransactionID != "" {
			txn.ExternalID = cb.TransactionID
		}
		txn.Status = next
		outcome.Status = next

		switch next {
		case models.TransactionCompleted:
			txn.CompletedAt = &now
			expires := txn.BillingCycle.Extend(now)
			tenant.PlanID = txn.PlanID
			tenant.SubscriptionStatus = models.SubscriptionActive
			tenant.SubscriptionExpiresAt = &expires
			tenant.SubscriptionID = txn.OrderID
			outcome.Code = OutcomeCompleted
			return store.PaymentUpdate{Transaction: true, Tenant: true}, nil
		case models.TransactionFailed:
			txn.CompletedAt = &now
			outcome.Code = OutcomeFailed
			return store.PaymentUpdate{Transaction: true}, nil
		default:
			outcome.Code = OutcomePending
			return store.PaymentUpdate{Transaction: true}, nil
		}
	}
}

// checkAmount rejects a success callback whose amount differs from the charge.
// An absent amount is accepted.
func checkAmount(raw string, want decimal.Decimal) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	got, err := decimal.NewFromString(raw)
	if err != nil {
		return apperr.Gateway(apperr.CodeInvalidPayload, "billing: check amount", "callback amount %q is not a number", raw)
	}
	if !got.Equal(want) {
		return apperr.Gateway(apperr.CodeAmountMismatch, "billing: check amount",
			"callback amount %s does not match charged amount %s", got.StringFixed(2), want.StringFixed(2))
	}
	return nil
}
