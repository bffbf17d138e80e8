package repository

import (
	"context"

	"dfp-neo/backend/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// List returns the page selected by f, newest first, and the total number of matches.
	List(ctx context.Context, f domain.Filter) ([]*domain.Event, int, error)
}
