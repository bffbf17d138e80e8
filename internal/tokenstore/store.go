// Package tokenstore keeps short-lived bearer records (sessions, reset and invite tokens)
// keyed by the hash of the bearer token. Expiry is checked on every read and enforced
// in bulk by a Sweeper.
package tokenstore

import (
	"context"
	"fmt"
	"time"

	"dfp-neo/backend/internal/autherr"
)

// Record is a value held in a Store. Validate is called on every write; a record
// that fails it is rejected with autherr.ErrInvalidArgument.
type Record interface {
	Validate() error
}

// Entry is a stored record and the instant it stops being valid.
type Entry[T Record] struct {
	Value     T
	ExpiresAt time.Time
}

// Expired reports whether now is past the entry's expiry. An entry is still valid at exactly ExpiresAt.
func (e Entry[T]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// UpdateFunc receives the live record and returns its replacement. Returning an error
// aborts the update and leaves the stored record unchanged.
type UpdateFunc[T Record] func(T) (T, error)

// Store is a concurrent, expiring map from token key to record.
//
// Get and Update never return an expired record: an expired entry is evicted and
// autherr.ErrExpired returned. A missing key yields autherr.ErrNotFound.
type Store[T Record] interface {
	// Put inserts or overwrites key with rec, valid for ttl. Returns the expiry instant.
	Put(ctx context.Context, key string, rec T, ttl time.Duration) (time.Time, error)
	// Get returns the live entry for key.
	Get(ctx context.Context, key string) (Entry[T], error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Update applies fn to the live record under the store's write discipline and keeps the expiry.
	Update(ctx context.Context, key string, fn UpdateFunc[T]) (Entry[T], error)
	// DeleteMatching removes every entry (live or expired) for which match returns true.
	DeleteMatching(ctx context.Context, match func(key string, rec T) bool) (int, error)
	// Sweep removes every expired entry and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

func checkKey(key string) error {
	if key == "" {
		return autherr.Invalid("token is required")
	}
	return nil
}

func checkPut(key string, rec Record, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return autherr.Invalid("ttl must be positive")
	}
	return checkRecord(rec)
}

func checkRecord(rec Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", autherr.ErrInvalidArgument, err)
	}
	return nil
}
