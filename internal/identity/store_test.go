package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/security"
	userdomain "dfp-neo/backend/internal/user/domain"
	userrepo "dfp-neo/backend/internal/user/repository"
)

type errRepo struct{ userrepo.Repository }

func (errRepo) GetByLogin(context.Context, string) (*userdomain.User, error) {
	return nil, errors.New("connection reset")
}

func newStore(t *testing.T) (*RepositoryStore, *userrepo.MemoryRepository) {
	t.Helper()
	h := security.NewHasher(4)
	hash, err := h.Hash([]byte("Correct1!"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	repo := userrepo.NewMemoryRepository(
		&userdomain.User{ID: "u1", LoginID: "jdoe", Username: "jdoe", Email: "jdoe@example.com", Role: userdomain.RolePilot, PasswordHash: hash, IsActive: true},
		&userdomain.User{ID: "u2", LoginID: "gone", Username: "gone", Role: userdomain.RoleUser, PasswordHash: hash, IsActive: false},
		&userdomain.User{ID: "u3", LoginID: "fresh", Username: "fresh", Role: userdomain.RoleUser, IsActive: true},
	)
	return NewRepositoryStore(repo, h), repo
}

func TestFindByCredentials(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	u, err := s.FindByCredentials(ctx, "JDoe", "Correct1!")
	if err != nil || u.ID != "u1" {
		t.Fatalf("FindByCredentials(login id) = %v, %v", u, err)
	}
	u, err = s.FindByCredentials(ctx, "jdoe@example.com", "Correct1!")
	if err != nil || u.ID != "u1" {
		t.Fatalf("FindByCredentials(email) = %v, %v", u, err)
	}

	cases := []struct{ name, id, secret string }{
		{"wrong password", "jdoe", "Wrong1!"},
		{"unknown user", "nobody", "Correct1!"},
		{"inactive user", "gone", "Correct1!"},
		{"no password set", "fresh", "Correct1!"},
		{"empty identifier", " ", "Correct1!"},
		{"empty secret", "jdoe", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.FindByCredentials(ctx, tc.id, tc.secret); !errors.Is(err, autherr.ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestFindByCredentials_RepoError(t *testing.T) {
	s := NewRepositoryStore(errRepo{}, security.NewHasher(4))
	_, err := s.FindByCredentials(context.Background(), "jdoe", "x")
	if !errors.Is(err, autherr.ErrInternal) {
		t.Errorf("err = %v, want ErrInternal", err)
	}
}

func TestFindByID(t *testing.T) {
	s, _ := newStore(t)
	if u, err := s.FindByID(context.Background(), "u1"); err != nil || u.LoginID != "jdoe" {
		t.Errorf("FindByID(u1) = %v, %v", u, err)
	}
	for _, id := range []string{"", "missing"} {
		if _, err := s.FindByID(context.Background(), id); !errors.Is(err, autherr.ErrNotFound) {
			t.Errorf("FindByID(%q) = %v, want ErrNotFound", id, err)
		}
	}
}

func TestMarkLogin(t *testing.T) {
	s, repo := newStore(t)
	at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := s.MarkLogin(context.Background(), "u1", at); err != nil {
		t.Fatalf("MarkLogin: %v", err)
	}
	u, _ := repo.GetByID(context.Background(), "u1")
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(at) {
		t.Errorf("LastLoginAt = %v, want %v", u.LastLoginAt, at)
	}
}
