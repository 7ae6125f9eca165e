package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "bizcardcloud"

// ErrEmptySecret is returned when no signing secret is configured.
var ErrEmptySecret = errors.New("security: jwt secret is empty")

// TenantClaims identifies the tenant a token was issued for.
type TenantClaims struct {
	TenantID string `json:"tenant_id"`
	Slug     string `json:"slug"`
	jwt.RegisteredClaims
}

// GenerateTenantToken signs an HS256 token for tenantID valid for expiry from now.
func GenerateTenantToken(secret, tenantID, slug string, expiry time.Duration, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, ErrEmptySecret
	}
	expiresAt := now.Add(expiry)
	claims := TenantClaims{
		TenantID: tenantID,
		Slug:     slug,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("security: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseTenantToken validates token and returns its claims.
func ParseTenantToken(secret, token string) (*TenantClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	claims := &TenantClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("security: parse token: %w", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.TenantID) == "" {
		return nil, errors.New("security: parse token: invalid claims")
	}
	return claims, nil
}
