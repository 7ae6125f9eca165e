// Package front registers the unauthenticated routes: signup, login, the plan
// catalog, the per-company card generator and the payment callbacks.
package front

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/http/api/front/handlers"
	"github.com/router-for-me/BizCardCloud/internal/ratelimit"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
)

// RegisterFrontRoutes registers public routes.
func RegisterFrontRoutes(r *gin.Engine, deps api.Deps) {
	if r == nil || deps.Store == nil {
		return
	}
	public := ratelimit.Middleware(deps.Limiter, ratelimit.ScopePublic)

	v0 := r.Group("/v0")

	if deps.Tenants != nil {
		authHandler := handlers.NewAuthHandler(deps.Tenants)
		v0.POST("/tenants/signup", public, authHandler.Signup)
		v0.POST("/tenants/login", public, authHandler.Login)
	}

	planHandler := handlers.NewPlanFrontHandler(deps.Store)
	v0.GET("/plans", planHandler.List)

	company := v0.Group("/t/:slug")
	company.Use(public, tenant.ResolveSlug(deps.Store))
	cardHandler := handlers.NewCardFrontHandler(deps.Store)
	company.GET("/employees/lookup", cardHandler.LookupEmployee)
	company.GET("/templates/active", cardHandler.ActiveTemplates)
	company.POST("/cards", cardHandler.RecordCard)

	if deps.Reconciler != nil {
		webhook := ratelimit.Middleware(deps.Limiter, ratelimit.ScopeWebhook)
		callbackHandler := handlers.NewPaymentCallbackHandler(deps.Reconciler)
		v0.POST("/webhooks/payment", webhook, callbackHandler.Callback)
		v0.POST("/payments/amwal/callback", webhook, callbackHandler.Callback)
	}
}
