// Package limits holds the Redis-backed request counters: the fixed-window
// rate limiter and the per-generation redo counter. Both tolerate rare lost
// updates; the monetary balance lives in the ledger package instead.
package limits

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request throttle shared across instances.
type RateLimiter struct {
	client    goredis.Cmdable
	keyPrefix string
}

// NewRateLimiter constructs a RateLimiter on top of a connected Redis client.
func NewRateLimiter(client goredis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client, keyPrefix: "ratelimit:"}
}

// RateResult reports a rate-limit decision.
type RateResult struct {
	Allowed   bool          // Whether the request may proceed.
	Remaining int64         // Requests left in the current window.
	ResetIn   time.Duration // Time until the window rolls over.
}

// Check counts this request against the caller's current fixed window and
// reports whether it fits under the limit. Windows are aligned to the epoch;
// the counter key expires at the window boundary so stale windows vanish.
// Store failures propagate to the caller, which treats them as infrastructure
// errors (the limiter fails closed).
func (r *RateLimiter) Check(ctx context.Context, key string, window time.Duration, limit int64) (RateResult, error) {
	windowSeconds := int64(window / time.Second)
	if windowSeconds <= 0 {
		return RateResult{}, fmt.Errorf("limits: invalid window %s", window)
	}

	now := time.Now().Unix()
	windowIndex := now / windowSeconds
	counterKey := r.keyPrefix + key + ":" + strconv.FormatInt(windowIndex, 10)

	count, errIncr := r.client.Incr(ctx, counterKey).Result()
	if errIncr != nil {
		return RateResult{}, fmt.Errorf("limits: rate incr: %w", errIncr)
	}
	if count == 1 {
		// Two concurrent first increments may both set the expiry; harmless.
		if errExpire := r.client.Expire(ctx, counterKey, window).Err(); errExpire != nil {
			return RateResult{}, fmt.Errorf("limits: rate expire: %w", errExpire)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetIn := time.Duration((windowIndex+1)*windowSeconds-now) * time.Second

	return RateResult{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}
