package repository

import (
	"context"
	"time"

	"dfp-neo/backend/internal/user/domain"
)

// Repository defines persistence for users. Getters return (nil, nil) for a missing row.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByLogin matches identifier case-insensitively against the login id, then the email.
	GetByLogin(ctx context.Context, identifier string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// SetPassword stores a new hash and must-change flag. An empty hash clears the password.
	SetPassword(ctx context.Context, id, hash string, mustChange bool, at time.Time) error
	MarkLogin(ctx context.Context, id string, at time.Time) error
}
