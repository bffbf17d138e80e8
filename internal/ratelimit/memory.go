package ratelimit

import (
	"context"
	"sync"
	"time"

	"dfp-neo/backend/internal/autherr"
)

type record struct {
	count       int
	lockedUntil time.Time
}

// MemoryLimiter is a single-process Limiter.
type MemoryLimiter struct {
	policy Policy
	mu     sync.Mutex
	m      map[string]record
	nowF   func() time.Time
}

// NewMemoryLimiter returns a MemoryLimiter. Zero policy fields take the defaults.
func NewMemoryLimiter(p Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy: p.normalize(),
		m:      make(map[string]record),
		nowF:   time.Now,
	}
}

// WithClock replaces the limiter's clock. Tests only.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.nowF = now
	return l
}

func (l *MemoryLimiter) Check(ctx context.Context, identity string) error {
	key := Key(identity)
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.m[key]
	if !ok || r.lockedUntil.IsZero() {
		return nil
	}
	if now.Before(r.lockedUntil) {
		return &autherr.LockedOutError{Until: r.lockedUntil}
	}
	delete(l.m, key)
	return nil
}

func (l *MemoryLimiter) IsLocked(ctx context.Context, identity string) (bool, error) {
	return l.Check(ctx, identity) != nil, nil
}

func (l *MemoryLimiter) RecordFailure(ctx context.Context, identity string) error {
	key := Key(identity)
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.m[key]
	if !r.lockedUntil.IsZero() {
		if now.Before(r.lockedUntil) {
			return &autherr.LockedOutError{Until: r.lockedUntil}
		}
		r = record{}
	}
	r.count++
	if r.count >= l.policy.MaxAttempts {
		r.lockedUntil = now.Add(l.policy.Lockout)
		l.m[key] = r
		return &autherr.LockedOutError{Until: r.lockedUntil}
	}
	l.m[key] = r
	return nil
}

func (l *MemoryLimiter) RecordSuccess(ctx context.Context, identity string) error {
	l.mu.Lock()
	delete(l.m, Key(identity))
	l.mu.Unlock()
	return nil
}

// Sweep drops records whose lockout has elapsed. Counters below the limit are kept
// until a successful login clears them.
func (l *MemoryLimiter) Sweep(ctx context.Context) (int, error) {
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, r := range l.m {
		if !r.lockedUntil.IsZero() && !now.Before(r.lockedUntil) {
			delete(l.m, k)
			n++
		}
	}
	return n, nil
}
