package autherr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLockedOutError_Is(t *testing.T) {
	err := fmt.Errorf("login: %w", &LockedOutError{Until: time.Now().Add(time.Minute)})
	if !errors.Is(err, ErrLockedOut) {
		t.Fatal("wrapped LockedOutError should match ErrLockedOut")
	}
	var lo *LockedOutError
	if !errors.As(err, &lo) {
		t.Fatal("errors.As should find *LockedOutError")
	}
}

func TestLockedOutError_MinutesRemaining(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		until time.Time
		want  int
	}{
		{now.Add(15 * time.Minute), 15},
		{now.Add(14*time.Minute + time.Second), 15},
		{now.Add(10 * time.Second), 1},
		{now.Add(-time.Minute), 1},
	}
	for _, tt := range tests {
		e := &LockedOutError{Until: tt.until}
		if got := e.MinutesRemaining(now); got != tt.want {
			t.Errorf("MinutesRemaining(%v) = %d, want %d", tt.until.Sub(now), got, tt.want)
		}
	}
}

func TestPolicyError_IsInvalidArgument(t *testing.T) {
	err := &PolicyError{Problems: []string{"too short", "needs a digit"}}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("PolicyError should match ErrInvalidArgument")
	}
	if got := err.Error(); got != "password does not meet requirements: too short; needs a digit" {
		t.Errorf("Error() = %q", got)
	}
}

func TestInternal(t *testing.T) {
	if Internal(nil) != nil {
		t.Error("Internal(nil) should be nil")
	}
	cause := errors.New("connection refused")
	err := Internal(cause)
	if !errors.Is(err, ErrInternal) {
		t.Error("Internal should match ErrInternal")
	}
	if !errors.Is(err, cause) {
		t.Error("Internal should unwrap to its cause")
	}
	if got := Internal(ErrNotFound); got != ErrNotFound {
		t.Errorf("Internal(ErrNotFound) = %v, want ErrNotFound unchanged", got)
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid("token is required")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("Invalid should match ErrInvalidArgument")
	}
}
