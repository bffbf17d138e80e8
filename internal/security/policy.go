package security

import (
	"unicode"

	"dfp-neo/backend/internal/autherr"
)

// MinPasswordLength is the shortest password ValidatePassword accepts.
const MinPasswordLength = 8

// ValidatePassword checks password against the strength rules and reports every
// failed rule at once as an *autherr.PolicyError.
func ValidatePassword(password string) error {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	n := 0
	for _, r := range password {
		n++
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	var problems []string
	if n < MinPasswordLength {
		problems = append(problems, "must be at least 8 characters long")
	}
	if !hasUpper {
		problems = append(problems, "must contain at least one uppercase letter")
	}
	if !hasLower {
		problems = append(problems, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		problems = append(problems, "must contain at least one number")
	}
	if !hasSpecial {
		problems = append(problems, "must contain at least one special character")
	}
	if len(problems) > 0 {
		return &autherr.PolicyError{Problems: problems}
	}
	return nil
}
