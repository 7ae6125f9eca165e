package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
)

// PlanFrontHandler serves the public plan catalog.
type PlanFrontHandler struct {
	store store.Storage
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(s store.Storage) *PlanFrontHandler {
	return &PlanFrontHandler{store: s}
}

// List returns purchasable plans in display order.
func (h *PlanFrontHandler) List(c *gin.Context) {
	plans, errList := h.store.ListPlans(c.Request.Context())
	if errList != nil {
		api.WriteError(c, errList)
		return
	}

	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		if !plan.IsActive {
			continue
		}
		out = append(out, formatPlan(plan))
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

func formatPlan(plan models.Plan) gin.H {
	return gin.H{
		"id":             plan.ID,
		"name":           plan.Name,
		"description":    plan.Description,
		"price_monthly":  plan.PriceMonthly.StringFixed(2),
		"price_yearly":   plan.PriceYearly.StringFixed(2),
		"max_employees":  plan.MaxEmployees,
		"max_templates":  plan.MaxTemplates,
		"max_storage_mb": plan.MaxStorageMB,
		"sort_order":     plan.SortOrder,
	}
}
