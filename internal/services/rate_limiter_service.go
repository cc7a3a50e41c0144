package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	mem "github.com/Pabby01/studIQ-sub001/pkg/memcache"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

// RateLimitDecision is the outcome of one Check. ResetAt is when the
// current window rolls over; callers report it as the retry hint.
type RateLimitDecision struct {
	Allowed bool
	Count   int64
	ResetAt time.Time
}

type RateLimiterInterface interface {
	Check(ctx context.Context, key string, window time.Duration, maxPerWindow int) (RateLimitDecision, error)
}

type RateLimiter struct {
	store mem.RateLimitStore
}

func NewRateLimiter(store mem.RateLimitStore) RateLimiterInterface {
	return &RateLimiter{store: store}
}

// Check applies a fixed-window policy to key. The store performs the
// check and the increment as one step.
func (r *RateLimiter) Check(ctx context.Context, key string, window time.Duration, maxPerWindow int) (RateLimitDecision, error) {
	if strings.TrimSpace(key) == "" {
		return RateLimitDecision{}, fmt.Errorf("%w: rate limit key is empty", utils.ErrInvalidArgument)
	}
	if window <= 0 {
		return RateLimitDecision{}, fmt.Errorf("%w: window must be positive, got %s", utils.ErrInvalidArgument, window)
	}
	if maxPerWindow < 1 {
		return RateLimitDecision{}, fmt.Errorf("%w: maxPerWindow must be at least 1, got %d", utils.ErrInvalidArgument, maxPerWindow)
	}

	entry, allowed, err := r.store.Take(ctx, key, window, maxPerWindow)
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limit store: %w", err)
	}

	return RateLimitDecision{
		Allowed: allowed,
		Count:   entry.Count,
		ResetAt: entry.WindowResetAt,
	}, nil
}
