package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"dfp-neo/backend/internal/user/domain"
)

func testUser(id, login, email string) *domain.User {
	return &domain.User{ID: id, LoginID: login, Username: login, Email: email, Role: domain.RoleUser, IsActive: true}
}

func TestMemoryRepository_GetByLogin(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(
		testUser("1", "jdoe", "john@example.com"),
		testUser("2", "john@example.com", "other@example.com"),
	)
	u, err := r.GetByLogin(ctx, "JDOE")
	if err != nil || u == nil || u.ID != "1" {
		t.Fatalf("GetByLogin(JDOE) = %+v, %v; want user 1", u, err)
	}
	u, _ = r.GetByLogin(ctx, "john@example.com")
	if u == nil || u.ID != "2" {
		t.Errorf("GetByLogin(email) = %+v, want login id match (user 2) to win", u)
	}
	u, _ = r.GetByLogin(ctx, "other@example.com")
	if u == nil || u.ID != "2" {
		t.Errorf("GetByLogin(other email) = %+v, want user 2", u)
	}
	u, err = r.GetByLogin(ctx, "nobody")
	if err != nil || u != nil {
		t.Errorf("GetByLogin(nobody) = %+v, %v; want nil, nil", u, err)
	}
}

func TestMemoryRepository_SetPassword(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(testUser("1", "jdoe", ""))
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := r.SetPassword(ctx, "1", "hash", true, at); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	u, _ := r.GetByID(ctx, "1")
	if u.PasswordHash != "hash" || !u.MustChangePassword || u.PasswordChangedAt == nil || !u.PasswordChangedAt.Equal(at) {
		t.Errorf("user after SetPassword = %+v", u)
	}
	if err := r.SetPassword(ctx, "missing", "h", false, at); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("SetPassword(missing) = %v, want sql.ErrNoRows", err)
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(testUser("1", "jdoe", ""))
	u, _ := r.GetByID(ctx, "1")
	u.PasswordHash = "tampered"
	again, _ := r.GetByID(ctx, "1")
	if again.PasswordHash != "" {
		t.Error("mutating a returned user changed the stored one")
	}
}

func TestMemoryRepository_CreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository(testUser("1", "jdoe", ""))
	if err := r.Create(ctx, testUser("2", "JDoe", "")); err == nil {
		t.Error("Create with a duplicate login id should fail")
	}
	if err := r.Create(ctx, &domain.User{ID: "3"}); err == nil {
		t.Error("Create with an invalid user should fail")
	}
}
