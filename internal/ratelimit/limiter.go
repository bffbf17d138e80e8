// Package ratelimit counts failed logins per identity and locks an identity out
// for a fixed window once it reaches the attempt limit.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the number of consecutive failures that triggers a lockout.
	DefaultMaxAttempts = 10
	// DefaultLockout is how long a lockout lasts.
	DefaultLockout = 15 * time.Minute
)

// Limiter tracks failed attempts per identity. Implementations serialize increments
// for the same identity; distinct identities never affect each other.
type Limiter interface {
	// Check returns an *autherr.LockedOutError while identity is locked out, nil otherwise.
	Check(ctx context.Context, identity string) error
	// IsLocked reports whether a lockout is active for identity.
	IsLocked(ctx context.Context, identity string) (bool, error)
	// RecordFailure counts one failure. It returns an *autherr.LockedOutError when this
	// failure reaches the limit and on every call while the lockout is active.
	RecordFailure(ctx context.Context, identity string) error
	// RecordSuccess clears the identity's count and lockout.
	RecordSuccess(ctx context.Context, identity string) error
}

// Policy is the attempt limit and lockout length.
type Policy struct {
	MaxAttempts int
	Lockout     time.Duration
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Lockout <= 0 {
		p.Lockout = DefaultLockout
	}
	return p
}

// Key folds identity to the form records are stored under.
func Key(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
