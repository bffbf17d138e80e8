package domain

import (
	"testing"
	"time"

	userdomain "dfp-neo/backend/internal/user/domain"
)

func TestSnapshotOf(t *testing.T) {
	u := &userdomain.User{
		ID: "u1", LoginID: "jdoe", Username: "jdoe", Email: "j@example.com", Role: userdomain.RoleInstructor,
		FirstName: "John", LastName: "Doe", DisplayName: "JD", MustChangePassword: true,
		PermissionsRoleID: "pr-1", PasswordHash: "secret-hash",
	}
	s := SnapshotOf(u)
	if s.ID != "u1" || s.LoginID != "jdoe" || s.Role != userdomain.RoleInstructor || !s.MustChangePassword || s.PermissionsRoleID != "pr-1" {
		t.Errorf("SnapshotOf = %+v", s)
	}
}

func TestSession_Validate(t *testing.T) {
	ok := Session{ID: "k", User: UserSnapshot{ID: "u1", Role: userdomain.RoleUser}, CreatedAt: time.Now()}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := []Session{
		{User: ok.User, CreatedAt: ok.CreatedAt},
		{ID: "k", User: UserSnapshot{Role: userdomain.RoleUser}, CreatedAt: ok.CreatedAt},
		{ID: "k", User: UserSnapshot{ID: "u1", Role: "GUEST"}, CreatedAt: ok.CreatedAt},
		{ID: "k", User: ok.User},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: Validate should fail for %+v", i, s)
		}
	}
}
