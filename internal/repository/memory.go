package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryResendLimiter keeps the OTP resend counters in process memory. Used
// standalone in tests and as the failover target when Redis is unavailable.
type MemoryResendLimiter struct {
	mu      sync.Mutex
	entries map[string]*resendEntry
}

type resendEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryResendLimiter() *MemoryResendLimiter {
	return &MemoryResendLimiter{entries: make(map[string]*resendEntry)}
}

func (r *MemoryResendLimiter) Allow(ctx context.Context, bookingID string, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Попутно выметаем протухшие окна, иначе карта растёт без предела.
	for key, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, key)
		}
	}

	entry, ok := r.entries[bookingID]
	if !ok || now.After(entry.expiresAt) {
		entry = &resendEntry{count: 1, expiresAt: now.Add(window)}
		r.entries[bookingID] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}
