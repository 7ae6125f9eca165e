// Package tenant handles company signup, admin login and request-to-tenant resolution.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/security"
	"github.com/router-for-me/BizCardCloud/internal/store"
	log "github.com/sirupsen/logrus"
)

const (
	minPasswordLength = 6
	maxSlugAttempts   = 100
)

// SignupInput carries the fields of a new company account.
type SignupInput struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	AdminEmail string `json:"admin_email"`
	Password   string `json:"password"`
}

// LoginInput identifies a tenant admin. Slug may be omitted when the email
// belongs to exactly one tenant.
type LoginInput struct {
	Slug     string `json:"slug"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is a signed-in tenant admin.
type Session struct {
	Tenant    *models.Tenant
	Token     string
	ExpiresAt time.Time
}

// Service signs tenants up, logs admins in and validates their tokens.
type Service struct {
	store store.Storage
	jwt   config.JWTConfig
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(s store.Storage, jwtCfg config.JWTConfig) *Service {
	return &Service{store: s, jwt: jwtCfg, now: time.Now}
}

// Signup creates a tenant on the free plan and signs its admin in. The slug is
// derived from the requested slug or the name; taken slugs get -1, -2, ... appended.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	const op = "tenant: signup"
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation(op, "company name is required")
	}
	email := models.NormalizeEmail(in.AdminEmail)
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation(op, "a valid admin email is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation(op, "password must be at least %d characters", minPasswordLength)
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	base := Slugify(in.Slug)
	if base == "" {
		base = Slugify(name)
	}
	if base == "" {
		base = fallbackSlug
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug := base
		if attempt > 0 {
			slug = fmt.Sprintf("%s-%d", base, attempt)
		}
		t := &models.Tenant{
			Slug:               slug,
			Name:               name,
			AdminEmail:         email,
			PasswordHash:       hash,
			PlanID:             models.PlanFree,
			SubscriptionStatus: models.SubscriptionInactive,
		}
		errCreate := s.store.CreateTenant(ctx, t)
		if apperr.CodeOf(errCreate) == apperr.CodeSlugTaken {
			continue
		}
		if errCreate != nil {
			return nil, errCreate
		}
		log.WithFields(log.Fields{"tenant_id": t.ID, "slug": t.Slug}).Info("tenant: signed up")
		return s.issue(t)
	}
	return nil, apperr.Conflict(apperr.CodeSlugTaken, op, "no free slug found for %q", base)
}

// Login checks the admin password and returns a fresh token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	const op = "tenant: login"
	email := models.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation(op, "email and password are required")
	}

	t, err := s.findAdmin(ctx, strings.ToLower(strings.TrimSpace(in.Slug)), email)
	if err != nil {
		return nil, err
	}
	if t == nil || t.AdminEmail != email || !security.CheckPassword(t.PasswordHash, in.Password) {
		return nil, apperr.Unauthorized(apperr.CodeInvalidCredentials, op, "invalid email or password")
	}
	return s.issue(t)
}

func (s *Service) findAdmin(ctx context.Context, slug, email string) (*models.Tenant, error) {
	if slug != "" {
		t, err := s.store.GetTenantBySlug(ctx, slug)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return t, err
	}
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	var match *models.Tenant
	for i := range tenants {
		if tenants[i].AdminEmail != email {
			continue
		}
		if match != nil {
			return nil, apperr.Validation("tenant: login", "email is used by several companies; provide the company slug")
		}
		match = &tenants[i]
	}
	return match, nil
}

// Authenticate resolves the tenant behind a bearer token.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Tenant, error) {
	const op = "tenant: authenticate"
	claims, err := security.ParseTenantToken(s.jwt.Secret, token)
	if err != nil {
		if errors.Is(err, security.ErrEmptySecret) {
			return nil, apperr.Configuration(apperr.CodeInvalidToken, op, "token signing is not configured")
		}
		return nil, apperr.Unauthorized(apperr.CodeInvalidToken, op, "invalid token")
	}
	t, err := s.store.GetTenant(ctx, claims.TenantID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized(apperr.CodeInvalidToken, op, "tenant no longer exists")
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) issue(t *models.Tenant) (*Session, error) {
	token, expiresAt, err := security.GenerateTenantToken(s.jwt.Secret, t.ID, t.Slug, s.jwt.Expiry, s.now())
	if err != nil {
		if errors.Is(err, security.ErrEmptySecret) {
			return nil, apperr.Configuration(apperr.CodeInvalidToken, "tenant: issue token", "token signing is not configured")
		}
		return nil, err
	}
	return &Session{Tenant: t, Token: token, ExpiresAt: expiresAt}, nil
}
