// Package handler exposes the password lifecycle over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/platform/httpx"
	"dfp-neo/backend/internal/password/service"
	"dfp-neo/backend/internal/server/middleware"
)

const forgotMessage = "If an account exists with that User ID, a password reset link has been sent."

// Handler serves password routes.
type Handler struct {
	lc *service.Lifecycle
	// exposeToken returns the raw reset token to the caller. Development only.
	exposeToken bool
	log         zerolog.Logger
}

// NewHandler returns a Handler.
func NewHandler(lc *service.Lifecycle, exposeToken bool, log zerolog.Logger) *Handler {
	return &Handler{lc: lc, exposeToken: exposeToken, log: log}
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// ChangePassword handles POST /api/auth/change-password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, autherr.Invalid("current and new password are required"))
		return
	}
	id, _ := middleware.GetIdentity(r.Context())
	err := h.lc.ChangeOwnPassword(r.Context(), service.ChangeOwn{
		UserID:          id.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		SessionToken:    id.Token,
	})
	if errors.Is(err, autherr.ErrInvalidCredentials) {
		// The caller is authenticated; a wrong current password is a bad request.
		httpx.WriteError(w, r, h.log, autherr.Invalid("current password is incorrect"))
		return
	}
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "Password changed successfully"})
}

type forgotPasswordRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type forgotPasswordResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	DevToken string `json:"devToken,omitempty"`
	DevLink  string `json:"devLink,omitempty"`
}

// ForgotPassword handles POST /api/auth/forgot-password. The response does not reveal
// whether the account exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, autherr.Invalid("userId is required"))
		return
	}
	token, err := h.lc.RequestReset(r.Context(), req.UserID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	resp := forgotPasswordResponse{Success: true, Message: forgotMessage}
	if h.exposeToken && token != "" {
		resp.DevToken = token
		resp.DevLink = h.lc.ResetLink(token)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"userId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ValidateResetToken handles POST /api/auth/validate-reset-token.
func (h *Handler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	h.validate(w, r, h.lc.ValidateResetToken)
}

// ValidateInviteToken handles POST /api/auth/validate-invite-token.
func (h *Handler) ValidateInviteToken(w http.ResponseWriter, r *http.Request) {
	h.validate(w, r, h.lc.ValidateInviteToken)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, check func(context.Context, string) (string, error)) {
	var req tokenRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, autherr.Invalid("token is required"))
		return
	}
	userID, err := check(r.Context(), req.Token)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, validateResponse{Valid: true, UserID: userID})
	case !errors.Is(err, autherr.ErrInternal):
		httpx.WriteJSON(w, http.StatusOK, validateResponse{Valid: false, Error: tokenProblem(err)})
	default:
		httpx.WriteError(w, r, h.log, err)
	}
}

func tokenProblem(err error) string {
	switch {
	case errors.Is(err, autherr.ErrExpired):
		return "Token has expired"
	case errors.Is(err, autherr.ErrAlreadyUsed):
		return "Token has already been used"
	default:
		return "Invalid token"
	}
}

type redeemRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, h.lc.ResetPassword, "Password has been reset successfully")
}

// SetPassword handles POST /api/auth/set-password.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, h.lc.SetPassword, "Password has been set successfully")
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) error, msg string) {
	var req redeemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, autherr.Invalid("token and newPassword are required"))
		return
	}
	if err := fn(r.Context(), req.Token, req.NewPassword); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: msg})
}

type generateInviteRequest struct {
	TTLHours int `json:"ttlHours" validate:"gte=0,lte=720"`
}

type generateInviteResponse struct {
	Success    bool      `json:"success"`
	InviteLink string    `json:"inviteLink"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// GenerateInvite handles POST /api/admin/users/{id}/generate-invite. The body is optional.
func (h *Handler) GenerateInvite(w http.ResponseWriter, r *http.Request) {
	var req generateInviteRequest
	if err := httpx.DecodeOptional(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	actorID, _ := middleware.GetUserID(r.Context())
	inv, err := h.lc.CreateInvite(r.Context(), chi.URLParam(r, "id"), req.TTLHours, actorID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, generateInviteResponse{Success: true, InviteLink: inv.Link, ExpiresAt: inv.ExpiresAt})
}

// ForceReset handles POST /api/admin/users/{id}/force-password-reset.
func (h *Handler) ForceReset(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserID(r.Context())
	if err := h.lc.ForceReset(r.Context(), chi.URLParam(r, "id"), actorID); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "User must set a new password at next sign-in"})
}

type adminSetRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
	MustChange  bool   `json:"mustChange"`
}

// AdminResetPassword handles POST /api/admin/users/{id}/reset-password.
func (h *Handler) AdminResetPassword(w http.ResponseWriter, r *http.Request) {
	var req adminSetRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, h.log, autherr.Invalid("newPassword is required"))
		return
	}
	actorID, _ := middleware.GetUserID(r.Context())
	err := h.lc.AdminSetPassword(r.Context(), service.AdminSet{
		TargetUserID: chi.URLParam(r, "id"),
		NewPassword:  req.NewPassword,
		MustChange:   req.MustChange,
		ActorID:      actorID,
	})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "Password updated"})
}
