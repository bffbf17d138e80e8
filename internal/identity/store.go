// Package identity verifies credentials against the user directory. It is the
// identity store the session manager and password lifecycle consult.
package identity

import (
	"context"
	"strings"
	"time"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/security"
	userdomain "dfp-neo/backend/internal/user/domain"
	userrepo "dfp-neo/backend/internal/user/repository"
)

// Store looks users up and checks their secrets.
type Store interface {
	// FindByCredentials returns the active user whose login id or email is identifier
	// and whose password matches secret. Every mismatch is autherr.ErrInvalidCredentials.
	FindByCredentials(ctx context.Context, identifier, secret string) (*userdomain.User, error)
	// FindByID returns the user or autherr.ErrNotFound.
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
	// MarkLogin records a successful sign-in time.
	MarkLogin(ctx context.Context, id string, at time.Time) error
}

// RepositoryStore is a Store over a user repository and a bcrypt hasher.
type RepositoryStore struct {
	users  userrepo.Repository
	hasher *security.Hasher
}

// NewRepositoryStore returns a Store backed by users.
func NewRepositoryStore(users userrepo.Repository, hasher *security.Hasher) *RepositoryStore {
	return &RepositoryStore{users: users, hasher: hasher}
}

// FindByCredentials runs exactly one bcrypt comparison whether or not the user exists,
// so response time does not reveal which identifiers are registered.
func (s *RepositoryStore) FindByCredentials(ctx context.Context, identifier, secret string) (*userdomain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, autherr.ErrInvalidCredentials
	}
	u, err := s.users.GetByLogin(ctx, identifier)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if u == nil || !u.IsActive {
		_ = s.hasher.CompareDummy([]byte(secret))
		return nil, autherr.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, []byte(secret)); err != nil {
		return nil, autherr.ErrInvalidCredentials
	}
	return u, nil
}

func (s *RepositoryStore) FindByID(ctx context.Context, id string) (*userdomain.User, error) {
	if id == "" {
		return nil, autherr.ErrNotFound
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if u == nil {
		return nil, autherr.ErrNotFound
	}
	return u, nil
}

func (s *RepositoryStore) MarkLogin(ctx context.Context, id string, at time.Time) error {
	if err := s.users.MarkLogin(ctx, id, at); err != nil {
		return autherr.Internal(err)
	}
	return nil
}
