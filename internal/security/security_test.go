package security

import (
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "s3cret!") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to be rejected")
	}
	if CheckPassword("", "s3cret!") {
		t.Fatalf("expected empty hash to be rejected")
	}
}

func TestTenantToken(t *testing.T) {
	now := time.Now()
	token, expires, err := GenerateTenantToken("k", "tenant-1", "acme", time.Hour, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry in one hour, got %v", expires)
	}
	claims, err := ParseTenantToken("k", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.TenantID != "tenant-1" || claims.Slug != "acme" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err = ParseTenantToken("other", token); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
}

func TestExpiredTenantToken(t *testing.T) {
	token, _, err := GenerateTenantToken("k", "tenant-1", "acme", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err = ParseTenantToken("k", token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestEmptySecret(t *testing.T) {
	if _, _, err := GenerateTenantToken(" ", "t", "s", time.Hour, time.Now()); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(16)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	b, _ := GenerateRandomString(16)
	if len(a) != 32 || a == b {
		t.Fatalf("expected distinct 32 char strings, got %q %q", a, b)
	}
}
