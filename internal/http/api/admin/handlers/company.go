package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/http/api/admin/permissions"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
)

// HealthHandler reports liveness and the active storage backend.
type HealthHandler struct {
	store store.Storage
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(s store.Storage) *HealthHandler {
	return &HealthHandler{store: s}
}

// Healthz returns ok with the backend name.
func (h *HealthHandler) Healthz(c *gin.Context) {
	backend := ""
	if h.store != nil {
		backend = h.store.Backend()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": backend})
}

// CompanyHandler serves the signed-in tenant's own profile.
type CompanyHandler struct{}

// NewCompanyHandler constructs a company handler.
func NewCompanyHandler() *CompanyHandler {
	return &CompanyHandler{}
}

// Me returns the current tenant without its password hash.
func (h *CompanyHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, TenantView(tenant.Current(c)))
}

// Routes lists the admin routes and the plan limit each consumes.
func (h *CompanyHandler) Routes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"routes": permissions.Definitions()})
}

// TenantView formats a tenant for API responses.
func TenantView(t *models.Tenant) gin.H {
	if t == nil {
		return gin.H{}
	}
	return gin.H{
		"id":                      t.ID,
		"slug":                    t.Slug,
		"name":                    t.Name,
		"admin_email":             t.AdminEmail,
		"plan_id":                 t.PlanID,
		"subscription_status":     t.SubscriptionStatus,
		"subscription_expires_at": t.SubscriptionExpiresAt,
		"subscription_id":         t.SubscriptionID,
		"created_at":              t.CreatedAt,
		"updated_at":              t.UpdatedAt,
	}
}
