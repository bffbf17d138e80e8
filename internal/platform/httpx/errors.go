package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/autherr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, autherr.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, autherr.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, autherr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, autherr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, autherr.ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, autherr.ErrExpired):
		return http.StatusGone
	case errors.Is(err, autherr.ErrLockedOut):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and a client-safe body. Errors outside the taxonomy
// and ErrInternal are logged and reported generically.
func WriteError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status := Status(err)
	body := ErrorBody{Error: message(err)}

	var pe *autherr.PolicyError
	var lo *autherr.LockedOutError
	switch {
	case errors.As(err, &pe):
		body.Error = "Password does not meet requirements"
		body.Details = pe.Problems
	case errors.As(err, &lo):
		now := time.Now()
		w.Header().Set("Retry-After", strconv.Itoa(int(lo.RetryAfter(now).Seconds())))
		body.Error = lockoutMessage(lo.MinutesRemaining(now))
	case status == http.StatusInternalServerError:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	WriteJSON(w, status, body)
}

func lockoutMessage(minutes int) string {
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Too many failed attempts. Try again in %d %s.", minutes, unit)
}

func message(err error) string {
	switch {
	case errors.Is(err, autherr.ErrInvalidArgument):
		return strings.TrimPrefix(err.Error(), autherr.ErrInvalidArgument.Error()+": ")
	case errors.Is(err, autherr.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, autherr.ErrUnauthorized):
		return "Forbidden"
	case errors.Is(err, autherr.ErrNotFound):
		return "Not found"
	case errors.Is(err, autherr.ErrAlreadyUsed):
		return "Token has already been used"
	case errors.Is(err, autherr.ErrExpired):
		return "Token has expired"
	default:
		return "Internal server error"
	}
}
