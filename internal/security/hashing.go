// Package security holds the credential primitives: bcrypt password hashing, opaque
// bearer tokens, the password policy and signed access tokens for the mobile API.
package security

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the identity is unknown so that a miss costs
// about as much as a wrong password.
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO5pB1hS6U7QYkqH0dXW5y4u1GJ2eQh0K"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4–31.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil if password matches hash. An empty hash never matches
// (accounts whose password was cleared by a forced reset).
func (h *Hasher) Compare(hash string, password []byte) error {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), password)
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// CompareDummy burns one comparison against a fixed hash. Always returns a mismatch.
func (h *Hasher) CompareDummy(password []byte) error {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), password)
	return bcrypt.ErrMismatchedHashAndPassword
}
