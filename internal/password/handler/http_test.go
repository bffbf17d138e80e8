package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit"
	"dfp-neo/backend/internal/identity"
	"dfp-neo/backend/internal/notify"
	"dfp-neo/backend/internal/password/domain"
	"dfp-neo/backend/internal/password/service"
	"dfp-neo/backend/internal/ratelimit"
	"dfp-neo/backend/internal/security"
	"dfp-neo/backend/internal/server/middleware"
	sessiondomain "dfp-neo/backend/internal/session/domain"
	sessionsvc "dfp-neo/backend/internal/session/service"
	"dfp-neo/backend/internal/tokenstore"
	userdomain "dfp-neo/backend/internal/user/domain"
	userrepo "dfp-neo/backend/internal/user/repository"
)

const (
	oldPassword = "Original1!"
	newPassword = "Replaced2@"
)

type fixture struct {
	h        *Handler
	lc       *service.Lifecycle
	sessions *sessionsvc.Manager
	users    *userrepo.MemoryRepository
}

func newFixture(t *testing.T, exposeToken bool) *fixture {
	t.Helper()
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte(oldPassword))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	users := userrepo.NewMemoryRepository(
		&userdomain.User{ID: "u1", LoginID: "jdoe", Email: "jdoe@example.com", Role: userdomain.RolePilot, PasswordHash: hash, IsActive: true},
		&userdomain.User{ID: "admin", LoginID: "root", Role: userdomain.RoleSuperAdmin, PasswordHash: hash, IsActive: true},
	)
	sessions := sessionsvc.NewManager(
		tokenstore.NewMemoryStore[sessiondomain.Session](),
		ratelimit.NewMemoryLimiter(ratelimit.Policy{MaxAttempts: 5}),
		identity.NewRepositoryStore(users, hasher),
		audit.Nop{}, zerolog.Nop(),
	)
	lc := service.NewLifecycle(
		tokenstore.NewMemoryStore[domain.OneTimeToken](),
		users, hasher, sessions, notify.NewLogSender(zerolog.Nop()), audit.Nop{}, zerolog.Nop(),
		service.Config{BaseURL: "https://dfp.example.com"},
	)
	return &fixture{h: NewHandler(lc, exposeToken, zerolog.Nop()), lc: lc, sessions: sessions, users: users}
}

func (f *fixture) login(t *testing.T, id string) *sessionsvc.Issued {
	t.Helper()
	iss, err := f.sessions.Login(context.Background(), sessionsvc.Credentials{Identifier: id, Secret: oldPassword})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return iss
}

func post(t *testing.T, h http.HandlerFunc, body string, ctx context.Context) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func withUserParam(ctx context.Context, id string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestForgotPassword_SameResponseForUnknownUser(t *testing.T) {
	f := newFixture(t, false)
	known := post(t, f.h.ForgotPassword, `{"userId":"jdoe"}`, nil)
	unknown := post(t, f.h.ForgotPassword, `{"userId":"nobody"}`, nil)
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("status = %d/%d, want 200/200", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("responses differ: %s vs %s", known.Body.String(), unknown.Body.String())
	}
	if strings.Contains(known.Body.String(), "devToken") {
		t.Error("dev token must not be exposed unless enabled")
	}
}

func TestForgotPassword_MissingUserID(t *testing.T) {
	f := newFixture(t, false)
	rec := post(t, f.h.ForgotPassword, `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResetFlow_DevToken(t *testing.T) {
	f := newFixture(t, true)
	resp := decode[forgotPasswordResponse](t, post(t, f.h.ForgotPassword, `{"userId":"JDOE"}`, nil))
	if resp.DevToken == "" {
		t.Fatal("expected dev token")
	}
	if !strings.HasPrefix(resp.DevLink, "https://dfp.example.com/reset-password?token=") {
		t.Errorf("DevLink = %q", resp.DevLink)
	}

	v := decode[validateResponse](t, post(t, f.h.ValidateResetToken, `{"token":"`+resp.DevToken+`"}`, nil))
	if !v.Valid || v.UserID != "u1" {
		t.Errorf("validate = %+v, want valid for u1", v)
	}

	weak := post(t, f.h.ResetPassword, `{"token":"`+resp.DevToken+`","newPassword":"short"}`, nil)
	if weak.Code != http.StatusBadRequest {
		t.Fatalf("weak password status = %d, want 400", weak.Code)
	}
	body := decode[struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}](t, weak)
	if len(body.Details) == 0 {
		t.Error("policy failures should be listed in details")
	}

	ok := post(t, f.h.ResetPassword, `{"token":"`+resp.DevToken+`","newPassword":"`+newPassword+`"}`, nil)
	if ok.Code != http.StatusOK {
		t.Fatalf("reset status = %d body %s", ok.Code, ok.Body.String())
	}
	again := post(t, f.h.ResetPassword, `{"token":"`+resp.DevToken+`","newPassword":"`+newPassword+`"}`, nil)
	if again.Code != http.StatusConflict {
		t.Errorf("reuse status = %d, want 409", again.Code)
	}
	used := decode[validateResponse](t, post(t, f.h.ValidateResetToken, `{"token":"`+resp.DevToken+`"}`, nil))
	if used.Valid || used.Error != "Token has already been used" {
		t.Errorf("validate used = %+v", used)
	}
}

func TestValidateInviteToken_Unknown(t *testing.T) {
	f := newFixture(t, false)
	rec := post(t, f.h.ValidateInviteToken, `{"token":"nope"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	v := decode[validateResponse](t, rec)
	if v.Valid || v.Error != "Invalid token" {
		t.Errorf("validate = %+v", v)
	}
}

func TestGenerateInvite_ThenSetPassword(t *testing.T) {
	f := newFixture(t, false)
	ctx := middleware.WithIdentity(withUserParam(context.Background(), "u1"), middleware.Identity{UserID: "admin", Role: userdomain.RoleSuperAdmin})
	rec := post(t, f.h.GenerateInvite, `{"ttlHours":24}`, ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	inv := decode[generateInviteResponse](t, rec)
	const prefix = "https://dfp.example.com/set-password?token="
	if !inv.Success || !strings.HasPrefix(inv.InviteLink, prefix) {
		t.Fatalf("invite = %+v", inv)
	}
	token := strings.TrimPrefix(inv.InviteLink, prefix)

	set := post(t, f.h.SetPassword, `{"token":"`+token+`","newPassword":"`+newPassword+`"}`, nil)
	if set.Code != http.StatusOK {
		t.Fatalf("set status = %d body %s", set.Code, set.Body.String())
	}
	if _, err := f.sessions.Login(context.Background(), sessionsvc.Credentials{Identifier: "jdoe", Secret: newPassword}); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestGenerateInvite_EmptyBodyAndUnknownUser(t *testing.T) {
	f := newFixture(t, false)
	ctx := middleware.WithIdentity(withUserParam(context.Background(), "u1"), middleware.Identity{UserID: "admin"})
	req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.h.GenerateInvite(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body status = %d, want 200", rec.Code)
	}

	// Chunked transfer with no payload: length unknown, body empty.
	chunked := httptest.NewRequest(http.MethodPost, "/", struct{ io.Reader }{strings.NewReader("")}).WithContext(ctx)
	chunked.ContentLength = -1
	rec = httptest.NewRecorder()
	f.h.GenerateInvite(rec, chunked)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty chunked body status = %d body %s, want 200", rec.Code, rec.Body.String())
	}

	if bad := post(t, f.h.GenerateInvite, `{"ttlHours":1000}`, ctx); bad.Code != http.StatusBadRequest {
		t.Errorf("ttlHours over cap status = %d, want 400", bad.Code)
	}

	missing := post(t, f.h.GenerateInvite, `{}`, withUserParam(context.Background(), "ghost"))
	if missing.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", missing.Code)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, false)
	keep := f.login(t, "jdoe")
	other := f.login(t, "jdoe")
	ctx := middleware.WithIdentity(context.Background(), middleware.IdentityFromSession(keep.Session, keep.Token))

	wrong := post(t, f.h.ChangePassword, `{"currentPassword":"Wrong1!!","newPassword":"`+newPassword+`"}`, ctx)
	if wrong.Code != http.StatusBadRequest {
		t.Fatalf("wrong current status = %d, want 400", wrong.Code)
	}

	rec := post(t, f.h.ChangePassword, `{"currentPassword":"`+oldPassword+`","newPassword":"`+newPassword+`"}`, ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if _, err := f.sessions.Validate(context.Background(), keep.Token); err != nil {
		t.Errorf("current session should survive: %v", err)
	}
	if _, err := f.sessions.Validate(context.Background(), other.Token); err == nil {
		t.Error("other session should be revoked")
	}
}

func TestForceReset_And_AdminReset(t *testing.T) {
	f := newFixture(t, false)
	iss := f.login(t, "jdoe")
	ctx := middleware.WithIdentity(withUserParam(context.Background(), "u1"), middleware.Identity{UserID: "admin"})

	rec := post(t, f.h.ForceReset, ``, ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("force reset status = %d body %s", rec.Code, rec.Body.String())
	}
	if _, err := f.sessions.Validate(context.Background(), iss.Token); err == nil {
		t.Error("sessions should be revoked by force reset")
	}

	rec = post(t, f.h.AdminResetPassword, `{"newPassword":"`+newPassword+`","mustChange":true}`, ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin reset status = %d body %s", rec.Code, rec.Body.String())
	}
	u, _ := f.users.GetByID(context.Background(), "u1")
	if !u.MustChangePassword {
		t.Error("MustChangePassword should be set")
	}

	weak := post(t, f.h.AdminResetPassword, `{"newPassword":"abc"}`, ctx)
	if weak.Code != http.StatusBadRequest {
		t.Errorf("weak password status = %d, want 400", weak.Code)
	}
}
