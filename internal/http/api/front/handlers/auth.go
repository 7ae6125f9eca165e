package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	adminhandlers "github.com/router-for-me/BizCardCloud/internal/http/api/admin/handlers"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
)

// AuthHandler serves company signup and admin login.
type AuthHandler struct {
	tenants *tenant.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(tenants *tenant.Service) *AuthHandler {
	return &AuthHandler{tenants: tenants}
}

// Signup creates a company and returns its admin token.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body tenant.SignupInput
	if !api.BindJSON(c, &body) {
		return
	}
	session, errSignup := h.tenants.Signup(c.Request.Context(), body)
	if errSignup != nil {
		api.WriteError(c, errSignup)
		return
	}
	c.JSON(http.StatusCreated, sessionView(session))
}

// Login checks admin credentials and returns a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body tenant.LoginInput
	if !api.BindJSON(c, &body) {
		return
	}
	session, errLogin := h.tenants.Login(c.Request.Context(), body)
	if errLogin != nil {
		api.WriteError(c, errLogin)
		return
	}
	c.JSON(http.StatusOK, sessionView(session))
}

func sessionView(s *tenant.Session) gin.H {
	return gin.H{
		"token":      s.Token,
		"expires_at": s.ExpiresAt,
		"tenant":     adminhandlers.TenantView(s.Tenant),
	}
}
