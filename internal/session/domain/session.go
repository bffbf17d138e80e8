package domain

import (
	"errors"
	"time"

	userdomain "dfp-neo/backend/internal/user/domain"
)

// UserSnapshot is the copy of the user taken at login and served by session validation
// without another directory lookup.
type UserSnapshot struct {
	ID                 string          `json:"id"`
	LoginID            string          `json:"userId"`
	Username           string          `json:"username"`
	Email              string          `json:"email,omitempty"`
	Role               userdomain.Role `json:"role"`
	FirstName          string          `json:"firstName,omitempty"`
	LastName           string          `json:"lastName,omitempty"`
	DisplayName        string          `json:"displayName,omitempty"`
	MustChangePassword bool            `json:"mustChangePassword"`
	PermissionsRoleID  string          `json:"permissionsRoleId,omitempty"`
}

// SnapshotOf copies the session-visible fields of u.
func SnapshotOf(u *userdomain.User) UserSnapshot {
	return UserSnapshot{
		ID:                 u.ID,
		LoginID:            u.LoginID,
		Username:           u.Username,
		Email:              u.Email,
		Role:               u.Role,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		DisplayName:        u.DisplayName,
		MustChangePassword: u.MustChangePassword,
		PermissionsRoleID:  u.PermissionsRoleID,
	}
}

// Session is an authenticated login. ID is the store key (the hash of the bearer
// token), never the token itself.
type Session struct {
	ID        string       `json:"id"`
	User      UserSnapshot `json:"user"`
	IPAddress string       `json:"ip_address,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	// ExpiresAt is filled from the store on read.
	ExpiresAt time.Time `json:"expires_at"`
}

// Validate is enforced by the token store on every write.
func (s Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.User.ID == "" {
		return errors.New("session user id is required")
	}
	if !s.User.Role.Valid() {
		return errors.New("session user role is invalid")
	}
	if s.CreatedAt.IsZero() {
		return errors.New("session created_at is required")
	}
	return nil
}
