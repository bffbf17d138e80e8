package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/platform/httpx"
	"dfp-neo/backend/internal/security"
	sessiondomain "dfp-neo/backend/internal/session/domain"
)

// SessionValidator resolves a bearer token to a live session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*sessiondomain.Session, error)
	ValidateID(ctx context.Context, sessionID string) (*sessiondomain.Session, error)
}

var errUnauthenticated = errors.New("missing or invalid session")

// SessionAuth requires an opaque session token and puts the caller's Identity in context.
// Unknown, expired and missing tokens are all answered with 401.
func SessionAuth(sessions SessionValidator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthenticated(w)
				return
			}
			s, err := sessions.Validate(r.Context(), token)
			if err != nil {
				if autherr.IsDomain(err) && !errors.Is(err, autherr.ErrInternal) {
					unauthenticated(w)
					return
				}
				httpx.WriteError(w, r, log, err)
				return
			}
			ctx := WithIdentity(r.Context(), IdentityFromSession(s, token))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessAuth requires a signed mobile access token whose session is still alive, so a
// revoked session invalidates its outstanding access tokens.
func AccessAuth(tokens *security.TokenProvider, sessions SessionValidator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" || tokens == nil {
				unauthenticated(w)
				return
			}
			claims, err := tokens.ValidateAccess(raw)
			if err != nil {
				unauthenticated(w)
				return
			}
			s, err := sessions.ValidateID(r.Context(), claims.SessionID)
			if err != nil {
				if autherr.IsDomain(err) && !errors.Is(err, autherr.ErrInternal) {
					unauthenticated(w)
					return
				}
				httpx.WriteError(w, r, log, err)
				return
			}
			ctx := WithIdentity(r.Context(), IdentityFromSession(s, ""))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePasswordCurrent rejects callers whose session still requires a password change.
// Mount it on every authenticated route except those used to change the password.
func RequirePasswordCurrent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := GetIdentity(r.Context()); ok && id.MustChangePassword {
			httpx.WriteJSON(w, http.StatusForbidden, httpx.ErrorBody{Error: "Password change required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthenticated(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{Error: "Unauthorized"})
}
