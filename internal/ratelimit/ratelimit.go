// Package ratelimit caps how many generations a subject (a provider kind) may start per hour.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Used is the number of calls counted in the current window, when known.
	Used    int64
	ResetAt time.Time
}

type Limiter interface {
	Allow(ctx context.Context, subject string, now time.Time) (Decision, error)
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, time.Time) (Decision, error) {
	return Decision{Allowed: true}, nil
}

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// Redis counts calls in fixed hourly windows shared by every process using the same redis.
type Redis struct {
	redis  *redis.Client
	limit  int64
	prefix string
}

func NewRedis(rdb *redis.Client, limit int64) *Redis {
	return &Redis{redis: rdb, limit: limit, prefix: "privatepilot:ratelimit"}
}

func (r *Redis) Allow(ctx context.Context, subject string, now time.Time) (Decision, error) {
	windowStart := now.UTC().Truncate(time.Hour)
	windowEnd := windowStart.Add(time.Hour)
	ttl := int64(windowEnd.Sub(now.UTC()).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, subject, windowStart.Format("2006010215"))
	res, err := incrWithTTLScript.Run(ctx, r.redis, []string{key}, ttl).Int64()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	return Decision{Allowed: res <= r.limit, Used: res, ResetAt: windowEnd}, nil
}
