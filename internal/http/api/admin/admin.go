package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/billing"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	handlers "github.com/router-for-me/BizCardCloud/internal/http/api/admin/handlers"
	"github.com/router-for-me/BizCardCloud/internal/http/api/admin/permissions"
	log "github.com/sirupsen/logrus"
)

// RegisterAdminRoutes registers the health check and the tenant admin routes.
func RegisterAdminRoutes(r *gin.Engine, deps api.Deps) {
	if r == nil || deps.Store == nil || deps.Tenants == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.Store)
	r.GET("/healthz", healthHandler.Healthz)

	authed := r.Group("/v0/admin")
	authed.Use(deps.Tenants.RequireAdmin())
	authed.Use(planLimitMiddleware(deps.Subscriptions))

	companyHandler := handlers.NewCompanyHandler()
	authed.GET("/me", companyHandler.Me)
	authed.GET("/routes", companyHandler.Routes)

	employeeHandler := handlers.NewEmployeeHandler(deps.Store)
	authed.POST("/employees", employeeHandler.Create)
	authed.GET("/employees", employeeHandler.List)
	authed.GET("/employees/:id", employeeHandler.Get)
	authed.PUT("/employees/:id", employeeHandler.Update)
	authed.DELETE("/employees/:id", employeeHandler.Delete)

	templateHandler := handlers.NewTemplateHandler(deps.Store)
	authed.POST("/templates", templateHandler.Create)
	authed.GET("/templates", templateHandler.List)
	authed.GET("/templates/:id", templateHandler.Get)
	authed.PUT("/templates/:id", templateHandler.Update)
	authed.DELETE("/templates/:id", templateHandler.Delete)
	authed.POST("/templates/:id/activate", templateHandler.Activate)

	cardHandler := handlers.NewCardHandler(deps.Store)
	authed.GET("/cards", cardHandler.List)

	if deps.Subscriptions != nil {
		billingHandler := handlers.NewBillingHandler(deps.Store, deps.Subscriptions)
		authed.GET("/billing/subscription", billingHandler.Subscription)
		authed.GET("/billing/usage", billingHandler.Usage)
		authed.POST("/billing/subscribe", billingHandler.Subscribe)
		authed.GET("/billing/transactions", billingHandler.Transactions)
	}
}

// planLimitMiddleware rejects creations that would exceed the tenant's plan. The
// reservation is held until the handler returns so parallel creates queue up.
func planLimitMiddleware(subscriptions *billing.SubscriptionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := permissions.LimitFor(c.Request.Method, c.FullPath())
		if limit == "" || subscriptions == nil {
			c.Next()
			return
		}
		release, errLimit := subscriptions.ReserveCreate(c.Request.Context(), api.TenantID(c), limit)
		if errLimit != nil {
			log.WithError(errLimit).WithField("tenant_id", api.TenantID(c)).Info("admin: plan limit reached")
			api.WriteError(c, errLimit)
			c.Abort()
			return
		}
		defer release()
		c.Next()
	}
}
