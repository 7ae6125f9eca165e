package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
)

// HeaderTenantID optionally pins an admin request to a tenant; it must match the token.
const HeaderTenantID = "X-Tenant-ID"

// Gin context keys set by the middlewares.
const (
	ContextTenantKey   = "tenant"
	ContextTenantIDKey = "tenantID"
)

type contextKey struct{}

// WithTenant returns a context carrying t.
func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the tenant stored by WithTenant.
func FromContext(ctx context.Context) (*models.Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(*models.Tenant)
	return t, ok && t != nil
}

// Current returns the tenant resolved for the request, or nil.
func Current(c *gin.Context) *models.Tenant {
	if v, ok := c.Get(ContextTenantKey); ok {
		if t, okTenant := v.(*models.Tenant); okTenant {
			return t
		}
	}
	return nil
}

func bind(c *gin.Context, t *models.Tenant) {
	c.Set(ContextTenantKey, t)
	c.Set(ContextTenantIDKey, t.ID)
	c.Request = c.Request.WithContext(WithTenant(c.Request.Context(), t))
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err), "code": apperr.CodeOf(err)})
}

// RequireAdmin validates the Bearer token and loads its tenant.
func (s *Service) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "tenant: require admin"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperr.Unauthorized(apperr.CodeInvalidToken, op, "missing authorization header"))
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			abort(c, apperr.Unauthorized(apperr.CodeInvalidToken, op, "invalid authorization format"))
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			abort(c, apperr.Unauthorized(apperr.CodeInvalidToken, op, "empty token"))
			return
		}

		t, err := s.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}
		if pinned := strings.TrimSpace(c.GetHeader(HeaderTenantID)); pinned != "" && pinned != t.ID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tenant mismatch", "code": apperr.CodeInvalidToken})
			return
		}
		bind(c, t)
		c.Next()
	}
}

// ResolveSlug loads the tenant named by the :slug path parameter for public endpoints.
func ResolveSlug(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
		if slug == "" {
			abort(c, apperr.NotFound(apperr.CodeTenantNotFound, "tenant: resolve slug", "company not found"))
			return
		}
		t, err := s.GetTenantBySlug(c.Request.Context(), slug)
		if err != nil {
			abort(c, err)
			return
		}
		bind(c, t)
		c.Next()
	}
}
