package handler

import (
	"errors"
	"net/http"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/platform/httpx"
	"dfp-neo/backend/internal/server/middleware"
	"dfp-neo/backend/internal/session/domain"
	"dfp-neo/backend/internal/session/service"
)

type mobileTokenResponse struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	TokenType    string              `json:"tokenType"`
	ExpiresIn    int64               `json:"expiresIn"`
	User         domain.UserSnapshot `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// MobileLogin handles POST /api/mobile/auth/login. The session token doubles as the
// refresh token; the access token is a short-lived JWT bound to the session id.
func (h *Handler) MobileLogin(w http.ResponseWriter, r *http.Request) {
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
	h.writeTokens(w, r, issued.Token, issued.Session)
}

// MobileRefresh handles POST /api/mobile/auth/refresh.
func (h *Handler) MobileRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	s, err := h.sessions.Validate(r.Context(), req.RefreshToken)
	if err != nil {
		if autherr.IsDomain(err) && !errors.Is(err, autherr.ErrInternal) {
			err = autherr.ErrInvalidCredentials
		}
		httpx.WriteError(w, r, h.log, err)
		return
	}
	h.writeTokens(w, r, req.RefreshToken, s)
}

// MobileMe handles GET /api/mobile/auth/me.
func (h *Handler) MobileMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.GetIdentity(r.Context())
	s, err := h.sessions.ValidateID(r.Context(), id.SessionID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{User: s.User, Expires: s.ExpiresAt})
}

func (h *Handler) writeTokens(w http.ResponseWriter, r *http.Request, refresh string, s *domain.Session) {
	access, err := h.tokens.IssueAccess(s.ID, s.User.ID, s.User.Username, string(s.User.Role))
	if err != nil {
		httpx.WriteError(w, r, h.log, autherr.Internal(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mobileTokenResponse{
		AccessToken:  access.Token,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.tokens.AccessTTL().Seconds()),
		User:         s.User,
	})
}
