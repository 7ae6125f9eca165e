package app

import (
	"context"
	"fmt"

	"github.com/router-for-me/BizCardCloud/internal/store"
)

// HasTenants reports whether at least one company has signed up.
func HasTenants(ctx context.Context, s store.Storage) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("nil storage")
	}
	tenants, err := s.ListTenants(ctx)
	if err != nil {
		return false, err
	}
	return len(tenants) > 0, nil
}
