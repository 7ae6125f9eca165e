package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/billing"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
)

// BillingHandler serves the tenant billing dashboard.
type BillingHandler struct {
	store         store.Storage
	subscriptions *billing.SubscriptionManager
}

// NewBillingHandler constructs a billing handler.
func NewBillingHandler(s store.Storage, subscriptions *billing.SubscriptionManager) *BillingHandler {
	return &BillingHandler{store: s, subscriptions: subscriptions}
}

// subscribeRequest selects the plan and cycle to pay for.
type subscribeRequest struct {
	PlanID       string `json:"plan_id"`       // Plan identifier.
	BillingCycle string `json:"billing_cycle"` // monthly or yearly.
}

// Subscription returns the tenant's current plan and subscription state.
func (h *BillingHandler) Subscription(c *gin.Context) {
	ctx := c.Request.Context()
	current := tenant.Current(c)
	if current == nil {
		api.WriteError(c, apperr.Unauthorized(apperr.CodeInvalidToken, "billing: subscription", "unauthorized"))
		return
	}
	active, errActive := h.subscriptions.HasActiveSubscription(ctx, current.ID)
	if errActive != nil {
		api.WriteError(c, errActive)
		return
	}
	planID := current.PlanID
	if planID == "" {
		planID = models.PlanFree
	}
	plan, errPlan := h.store.GetPlan(ctx, planID)
	if errPlan != nil {
		api.WriteError(c, errPlan)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":                    plan,
		"subscription_status":     current.SubscriptionStatus,
		"subscription_expires_at": current.SubscriptionExpiresAt,
		"subscription_id":         current.SubscriptionID,
		"active":                  active,
	})
}

// Usage returns employee and template counts against the plan limits.
func (h *BillingHandler) Usage(c *gin.Context) {
	usage, errUsage := h.subscriptions.Usage(c.Request.Context(), api.TenantID(c))
	if errUsage != nil {
		api.WriteError(c, errUsage)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// Subscribe starts a payment. Gateway and credential problems are reported with
// success=false and a code instead of an error status.
func (h *BillingHandler) Subscribe(c *gin.Context) {
	var body subscribeRequest
	if !api.BindJSON(c, &body) {
		return
	}
	if strings.TrimSpace(body.PlanID) == "" {
		api.WriteError(c, apperr.Validation("billing: subscribe", "plan_id is required"))
		return
	}
	result, errCreate := h.subscriptions.CreateSubscription(c.Request.Context(), api.TenantID(c), body.PlanID, body.BillingCycle)
	if errCreate != nil {
		api.WriteError(c, errCreate)
		return
	}
	if !result.OK() {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": result.Failure.Message, "code": result.Failure.Code})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"transaction":  result.Transaction,
		"payment_url":  result.Payment.ActionURL,
		"payment_data": result.Payment.Payload,
		"order_id":     result.Payment.OrderID,
	})
}

// Transactions lists payment attempts newest first, optionally by ?status=.
func (h *BillingHandler) Transactions(c *gin.Context) {
	limit, offset := api.Page(c)
	filter := store.Filter{
		Status: models.TransactionStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Limit:  limit,
		Offset: offset,
	}
	txns, errList := store.ListAs[*models.PaymentTransaction](c.Request.Context(), h.store, store.KindTransaction, api.TenantID(c), filter)
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}
