package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/platform/httpx"
	"dfp-neo/backend/internal/policy/domain"
	"dfp-neo/backend/internal/policy/engine"
	"dfp-neo/backend/internal/server/middleware"
	userdomain "dfp-neo/backend/internal/user/domain"
)

// UserGetter loads the caller's account. RequireCapability uses it to resolve the current
// role, so a role change or deactivation applies to sessions that are already open.
type UserGetter interface {
	FindByID(ctx context.Context, id string) (*userdomain.User, error)
}

// RequireCapability ensures the caller is authenticated, still active, and that its current
// role holds capability. Returns the caller's user id on success; autherr.ErrInvalidCredentials
// when there is no identity in context and autherr.ErrUnauthorized when the account is gone,
// inactive or the policy denies.
func RequireCapability(ctx context.Context, users UserGetter, authz engine.Authorizer, capability domain.Capability) (string, error) {
	id, ok := middleware.GetIdentity(ctx)
	if !ok || id.UserID == "" {
		return "", autherr.ErrInvalidCredentials
	}
	u, err := users.FindByID(ctx, id.UserID)
	if errors.Is(err, autherr.ErrNotFound) {
		return "", autherr.ErrUnauthorized
	}
	if err != nil {
		return "", autherr.Internal(err)
	}
	if !u.IsActive {
		return "", autherr.ErrUnauthorized
	}
	allowed, err := authz.Allowed(ctx, u.Role, capability)
	if err != nil {
		return "", autherr.Internal(err)
	}
	if !allowed {
		return "", autherr.ErrUnauthorized
	}
	return id.UserID, nil
}

// Capability is RequireCapability as chi-compatible middleware.
func Capability(users UserGetter, authz engine.Authorizer, capability domain.Capability, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireCapability(r.Context(), users, authz, capability); err != nil {
				httpx.WriteError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
