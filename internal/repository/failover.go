package repository

import (
	"context"
	"sync/atomic"
	"time"

	"handyhub/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverResendLimiter prefers the primary (Redis) limiter and falls back to
// the in-memory one when the primary errors. It retries the primary after a
// minute, so a Redis restart does not permanently degrade throttling.
type FailoverResendLimiter struct {
	primary   domain.ResendLimiter
	fallback  domain.ResendLimiter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed primary attempt
}

func NewFailoverResendLimiter(primary, fallback domain.ResendLimiter, logger *zerolog.Logger) *FailoverResendLimiter {
	return &FailoverResendLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverResendLimiter) Allow(ctx context.Context, bookingID string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldRetryPrimary() {
		ok, err := r.primary.Allow(ctx, bookingID, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return ok, nil
		}
		r.logger.Error().Err(err).Msg("primary resend limiter failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Allow(ctx, bookingID, limit, window)
}

func (r *FailoverResendLimiter) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}
