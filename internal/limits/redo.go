package limits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redo allowance parameters.
const (
	// RedoBudget is the number of free redo attempts per generation.
	RedoBudget = 3
	// RedoTTL bounds how long a generation can be redone.
	RedoTTL = 30 * time.Minute
)

// RedoCounter tracks the remaining free redo attempts per (user, generation).
// Entries expire on their own; an absent entry reads as zero attempts left.
type RedoCounter struct {
	client    goredis.Cmdable
	keyPrefix string
}

// NewRedoCounter constructs a RedoCounter on top of a connected Redis client.
func NewRedoCounter(client goredis.Cmdable) *RedoCounter {
	return &RedoCounter{client: client, keyPrefix: "redo:"}
}

func (r *RedoCounter) key(userID uint64, generationID string) string {
	return r.keyPrefix + strconv.FormatUint(userID, 10) + ":" + generationID
}

// Init seeds the redo budget for a freshly minted generation, overwriting any
// previous entry under the same key.
func (r *RedoCounter) Init(ctx context.Context, userID uint64, generationID string) error {
	if errSet := r.client.Set(ctx, r.key(userID, generationID), RedoBudget, RedoTTL).Err(); errSet != nil {
		return fmt.Errorf("limits: redo init: %w", errSet)
	}
	return nil
}

// CanUse reports whether at least one redo attempt remains. A missing or
// expired entry reads as exhausted.
func (r *RedoCounter) CanUse(ctx context.Context, userID uint64, generationID string) (bool, error) {
	value, errGet := r.client.Get(ctx, r.key(userID, generationID)).Result()
	if errGet != nil {
		if errors.Is(errGet, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("limits: redo read: %w", errGet)
	}
	count, errParse := strconv.ParseInt(value, 10, 64)
	if errParse != nil {
		return false, fmt.Errorf("limits: redo parse %q: %w", value, errParse)
	}
	return count > 0, nil
}

// Use consumes one redo attempt. A decrement that lands below zero is clamped
// back to zero and reported as a failure; two racing callers at count=1 may
// both burn a decrement, which we repair rather than prevent since redo is not
// a monetary resource.
func (r *RedoCounter) Use(ctx context.Context, userID uint64, generationID string) (bool, error) {
	count, errDecr := r.client.Decr(ctx, r.key(userID, generationID)).Result()
	if errDecr != nil {
		return false, fmt.Errorf("limits: redo decr: %w", errDecr)
	}
	if count < 0 {
		if errSet := r.client.Set(ctx, r.key(userID, generationID), 0, RedoTTL).Err(); errSet != nil {
			return false, fmt.Errorf("limits: redo clamp: %w", errSet)
		}
		return false, nil
	}
	return true, nil
}
