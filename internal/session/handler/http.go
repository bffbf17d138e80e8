// Package handler exposes the session manager over HTTP: web login/logout/session, the
// mobile token API and administrative session revocation.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/platform/httpx"
	"dfp-neo/backend/internal/security"
	"dfp-neo/backend/internal/server/middleware"
	"dfp-neo/backend/internal/session/domain"
	"dfp-neo/backend/internal/session/service"
)

// Handler serves session routes.
type Handler struct {
	sessions *service.Manager
	tokens   *security.TokenProvider
	log      zerolog.Logger
}

// NewHandler returns a Handler. tokens may be nil, which disables the mobile API.
func NewHandler(sessions *service.Manager, tokens *security.TokenProvider, log zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, tokens: tokens, log: log}
}

// MobileEnabled reports whether access tokens can be issued.
func (h *Handler) MobileEnabled() bool { return h.tokens != nil }

type loginRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	SessionToken       string              `json:"sessionToken"`
	Expires            time.Time           `json:"expires"`
	User               domain.UserSnapshot `json:"user"`
	MustChangePassword bool                `json:"mustChangePassword"`
}

type sessionResponse struct {
	User    domain.UserSnapshot `json:"user"`
	Expires time.Time           `json:"expires"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, autherr.Invalid("userId and password are required"))
		return
	}
	ip, _ := middleware.ClientMeta(r.Context())
	issued, err := h.sessions.Login(r.Context(), service.Credentials{Identifier: req.UserID, Secret: req.Password, ClientIP: ip})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		SessionToken:       issued.Token,
		Expires:            issued.Session.ExpiresAt,
		User:               issued.Session.User,
		MustChangePassword: issued.Session.User.MustChangePassword,
	})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	if err := h.sessions.Logout(r.Context(), id.Token); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "Logged out successfully"})
}

// Session handles GET /api/auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	s, err := h.sessions.ValidateID(r.Context(), id.SessionID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{User: s.User, Expires: s.ExpiresAt})
}

type revokeResponse struct {
	Success bool `json:"success"`
	Revoked int  `json:"revoked"`
}

// RevokeUserSessions handles POST /api/admin/users/{id}/revoke-sessions.
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserID(r.Context())
	n, err := h.sessions.RevokeAllForUser(r.Context(), chi.URLParam(r, "id"), actorID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, revokeResponse{Success: true, Revoked: n})
}
