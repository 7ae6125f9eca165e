package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowTTLSeconds keeps a window hash slightly past its second so late
// replicas still see it.
const windowTTLSeconds = 2

// One hash per scope and second, one field per client address.
var redisHitScript = redis.NewScript(`
local hits = redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
if redis.call("TTL", KEYS[1]) < 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return hits
`)

func redisWindowKey(prefix string, scope Scope, sec int64) string {
	key := string(scope) + ":" + strconv.FormatInt(sec, 10)
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

func redisHit(ctx context.Context, client *redis.Client, prefix string, scope Scope, clientIP string, now time.Time) (int64, int64, error) {
	sec := now.Unix()
	hits, errRun := redisHitScript.Run(ctx, client, []string{redisWindowKey(prefix, scope, sec)}, clientIP, windowTTLSeconds).Int64()
	if errRun != nil {
		return 0, sec, fmt.Errorf("rate limit redis: %w", errRun)
	}
	return hits, sec, nil
}
