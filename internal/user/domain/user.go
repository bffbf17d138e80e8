package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is a user's platform role. Capabilities per role live in the authorization policy.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RolePilot      Role = "PILOT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleUser       Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RolePilot, RoleInstructor, RoleUser:
		return true
	}
	return false
}

// User is an account that can sign in. LoginID is what the user types at the login
// prompt; ID is the stable key everything else references.
type User struct {
	ID                 string
	LoginID            string
	Username           string
	Email              string
	Role               Role
	FirstName          string
	LastName           string
	DisplayName        string
	PasswordHash       string // empty until set or after a forced reset
	MustChangePassword bool
	IsActive           bool
	PermissionsRoleID  string
	LastLoginAt        *time.Time
	PasswordChangedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the user for persistence. Returns the first failure found.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(u.LoginID) == "" {
		return errors.New("login id is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if !u.Role.Valid() {
		return errors.New("role is invalid")
	}
	return nil
}

// HasPassword reports whether a password hash is set.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }
