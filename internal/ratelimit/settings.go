package ratelimit

import (
	"strings"

	"github.com/router-for-me/BizCardCloud/internal/config"
)

const defaultRedisPrefix = "bizcard:ratelimit"

// Settings holds the per-second limit of each scope. Zero disables a scope.
type Settings struct {
	WebhookLimit int
	PublicLimit  int
	RedisPrefix  string
}

// SettingsFromConfig derives limiter settings. Window keys live next to the
// pending payment keys under their own prefix.
func SettingsFromConfig(cfg config.Config) Settings {
	out := Settings{
		WebhookLimit: max(cfg.RateLimit.WebhookPerSecond, 0),
		PublicLimit:  max(cfg.RateLimit.PublicPerSecond, 0),
		RedisPrefix:  defaultRedisPrefix,
	}
	if pendingPrefix := strings.TrimSpace(cfg.Pending.RedisPrefix); pendingPrefix != "" {
		if base, _, ok := strings.Cut(pendingPrefix, ":"); ok && base != "" {
			out.RedisPrefix = base + ":ratelimit"
		}
	}
	return out
}

// LimitFor returns the per-second limit for scope.
func (s Settings) LimitFor(scope Scope) int {
	switch scope {
	case ScopeWebhook:
		return s.WebhookLimit
	case ScopePublic:
		return s.PublicLimit
	default:
		return 0
	}
}
