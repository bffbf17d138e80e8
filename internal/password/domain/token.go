package domain

import (
	"errors"
	"time"
)

// Purpose distinguishes reset tokens from invite tokens. A token minted for one purpose
// is never accepted for the other.
type Purpose string

const (
	PurposeReset  Purpose = "reset"
	PurposeInvite Purpose = "invite"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeReset || p == PurposeInvite
}

// OneTimeToken is a reset or invite token held in the token store under the hash of the
// bearer value. It is usable iff !Used and the store entry has not expired.
type OneTimeToken struct {
	UserID    string     `json:"user_id"`
	Purpose   Purpose    `json:"purpose"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t OneTimeToken) Validate() error {
	if t.UserID == "" {
		return errors.New("token user id is required")
	}
	if !t.Purpose.Valid() {
		return errors.New("token purpose is invalid")
	}
	if t.Used && t.UsedAt == nil {
		return errors.New("used token must carry used_at")
	}
	return nil
}
