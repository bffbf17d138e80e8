package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"dfp-neo/backend/internal/user/domain"
)

// MemoryRepository is an in-process Repository for tests and for running the server
// without a database in development.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewMemoryRepository returns a repository holding copies of users.
func NewMemoryRepository(users ...*domain.User) *MemoryRepository {
	r := &MemoryRepository{users: make(map[string]*domain.User)}
	for _, u := range users {
		c := *u
		r.users[u.ID] = &c
	}
	return r
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) GetByLogin(ctx context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var byEmail *domain.User
	for _, u := range r.users {
		if strings.EqualFold(u.LoginID, identifier) {
			c := *u
			return &c, nil
		}
		if byEmail == nil && u.Email != "" && strings.EqualFold(u.Email, identifier) {
			byEmail = u
		}
	}
	if byEmail == nil {
		return nil, nil
	}
	c := *byEmail
	return &c, nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.ID == u.ID || strings.EqualFold(existing.LoginID, u.LoginID) {
			return errors.New("user already exists")
		}
	}
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *MemoryRepository) SetPassword(ctx context.Context, id, hash string, mustChange bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	u.MustChangePassword = mustChange
	u.PasswordChangedAt = &at
	u.UpdatedAt = at
	return nil
}

func (r *MemoryRepository) MarkLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}
