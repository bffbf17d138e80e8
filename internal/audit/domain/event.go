package domain

import (
	"errors"
	"time"
)

// Action names an audited operation.
type Action string

const (
	ActionLogin                Action = "LOGIN"
	ActionLoginFailed          Action = "LOGIN_FAILED"
	ActionLoginLockedOut       Action = "LOGIN_LOCKED_OUT"
	ActionLogout               Action = "LOGOUT"
	ActionSessionsRevoked      Action = "SESSIONS_REVOKED"
	ActionPasswordChange       Action = "PASSWORD_CHANGE"
	ActionPasswordResetRequest Action = "PASSWORD_RESET_REQUEST"
	ActionPasswordReset        Action = "PASSWORD_RESET"
	ActionPasswordSet          Action = "PASSWORD_SET"
	ActionPasswordResetForced  Action = "PASSWORD_RESET_FORCED"
	ActionAdminPasswordReset   Action = "ADMIN_PASSWORD_RESET"
	ActionInviteCreated        Action = "INVITE_CREATED"
	ActionCreateUser           Action = "CREATE_USER"
)

// Event is one audit log entry. ActorUserID is empty for unauthenticated actions
// such as a failed login.
type Event struct {
	ID           string         `json:"id"`
	ActorUserID  string         `json:"actor_user_id,omitempty"`
	Action       Action         `json:"action_type"`
	TargetUserID string         `json:"target_user_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate checks the event before persistence.
func (e *Event) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Action == "" {
		return errors.New("action is required")
	}
	return nil
}

// Filter narrows an audit log listing. Zero fields do not filter.
type Filter struct {
	ActorUserID  string
	TargetUserID string
	Action       Action
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Normalize clamps Limit into 1..MaxListLimit and Offset to non-negative.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether e passes every set field of f except paging.
func (f Filter) Matches(e *Event) bool {
	if f.ActorUserID != "" && e.ActorUserID != f.ActorUserID {
		return false
	}
	if f.TargetUserID != "" && e.TargetUserID != f.TargetUserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}
