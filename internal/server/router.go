// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	audithandler "dfp-neo/backend/internal/audit/handler"
	healthhandler "dfp-neo/backend/internal/health/handler"
	passwordhandler "dfp-neo/backend/internal/password/handler"
	"dfp-neo/backend/internal/platform/httpx"
	"dfp-neo/backend/internal/platform/rbac"
	policydomain "dfp-neo/backend/internal/policy/domain"
	"dfp-neo/backend/internal/policy/engine"
	"dfp-neo/backend/internal/security"
	"dfp-neo/backend/internal/server/middleware"
	sessionhandler "dfp-neo/backend/internal/session/handler"
)

const healthPath = "/api/health"

// Deps holds the handlers and collaborators the router mounts.
type Deps struct {
	Sessions *sessionhandler.Handler
	Password *passwordhandler.Handler
	// Audit serves the audit log listing. If nil, the route is not mounted.
	Audit  *audithandler.Handler
	Health *healthhandler.Server
	// Validator resolves session tokens for the auth middleware.
	Validator middleware.SessionValidator
	// Tokens verifies mobile access tokens. If nil, the mobile API is not mounted.
	Tokens *security.TokenProvider
	Authz  engine.Authorizer
	// Users resolves the caller's current role for capability checks.
	Users rbac.UserGetter
	Log   zerolog.Logger
	// Instrument wraps the router with otelhttp.
	Instrument bool
}

// NewRouter returns the API handler.
//
// Route → handler mapping:
//   - /api/health               → internal/health/handler
//   - /api/auth/*               → internal/session/handler, internal/password/handler
//   - /api/admin/users/{id}/*   → internal/password/handler, internal/session/handler
//   - /api/admin/audit-logs     → internal/audit/handler
//   - /api/mobile/auth/*        → internal/session/handler
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Client)
	r.Use(middleware.Recover(d.Log))
	r.Use(middleware.RequestLog(d.Log, map[string]bool{healthPath: true}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorBody{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, httpx.ErrorBody{Error: "Method not allowed"})
	})

	if d.Health != nil {
		r.Get(healthPath, d.Health.HealthCheck)
	}

	sessionAuth := middleware.SessionAuth(d.Validator, d.Log)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", d.Sessions.Login)
		r.Post("/forgot-password", d.Password.ForgotPassword)
		r.Post("/validate-reset-token", d.Password.ValidateResetToken)
		r.Post("/reset-password", d.Password.ResetPassword)
		r.Post("/validate-invite-token", d.Password.ValidateInviteToken)
		r.Post("/set-password", d.Password.SetPassword)

		// Reachable while a password change is pending.
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Post("/logout", d.Sessions.Logout)
			r.Get("/session", d.Sessions.Session)
			r.Post("/change-password", d.Password.ChangePassword)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(sessionAuth)
		r.Use(middleware.RequirePasswordCurrent)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Use(rbac.Capability(d.Users, d.Authz, policydomain.CapUsersManage, d.Log))
			r.Post("/generate-invite", d.Password.GenerateInvite)
			r.Post("/force-password-reset", d.Password.ForceReset)
			r.Post("/reset-password", d.Password.AdminResetPassword)
			r.Post("/revoke-sessions", d.Sessions.RevokeUserSessions)
		})
		if d.Audit != nil {
			r.With(rbac.Capability(d.Users, d.Authz, policydomain.CapAuditRead, d.Log)).Get("/audit-logs", d.Audit.List)
		}
	})

	if d.Tokens != nil && d.Sessions.MobileEnabled() {
		r.Route("/api/mobile/auth", func(r chi.Router) {
			r.Post("/login", d.Sessions.MobileLogin)
			r.Post("/refresh", d.Sessions.MobileRefresh)
			r.With(middleware.AccessAuth(d.Tokens, d.Validator, d.Log)).Get("/me", d.Sessions.MobileMe)
		})
	}

	if d.Instrument {
		return otelhttp.NewHandler(r, "dfp-neo-auth",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != healthPath }),
		)
	}
	return r
}
