// Package api holds the pieces shared by the admin and public route groups.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/billing"
	"github.com/router-for-me/BizCardCloud/internal/ratelimit"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
	log "github.com/sirupsen/logrus"
)

const maxPageSize = 200

// Deps are the process-wide services the handlers need.
type Deps struct {
	Store         store.Storage
	Tenants       *tenant.Service
	Subscriptions *billing.SubscriptionManager
	Reconciler    *billing.WebhookReconciler
	Limiter       *ratelimit.Manager
}

// WriteError renders err as {"error", "code"} with the status for its kind.
func WriteError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	entry := log.WithError(err).WithField("path", c.FullPath())
	if status >= http.StatusInternalServerError {
		entry.Error("api: request failed")
	} else {
		entry.Debug("api: request rejected")
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err), "code": apperr.CodeOf(err)})
}

// BindJSON decodes the request body into out and writes a 400 on failure.
func BindJSON(c *gin.Context, out any) bool {
	if errBind := c.ShouldBindJSON(out); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "code": apperr.CodeInvalidInput})
		return false
	}
	return true
}

// Page reads ?limit= and ?offset=, capping the page size.
func Page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	offset, _ = strconv.Atoi(strings.TrimSpace(c.Query("offset")))
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// TenantID returns the id of the tenant resolved by the tenant middlewares.
func TenantID(c *gin.Context) string {
	return c.GetString(tenant.ContextTenantIDKey)
}
