package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/security"
	sessiondomain "dfp-neo/backend/internal/session/domain"
	userdomain "dfp-neo/backend/internal/user/domain"
)

// mockSessions implements SessionValidator for tests.
type mockSessions struct {
	byToken map[string]*sessiondomain.Session
	byID    map[string]*sessiondomain.Session
	err     error
}

func (m *mockSessions) Validate(ctx context.Context, token string) (*sessiondomain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.byToken[token]; ok {
		return s, nil
	}
	return nil, autherr.ErrNotFound
}

func (m *mockSessions) ValidateID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, autherr.ErrExpired
}

func testSession(mustChange bool) *sessiondomain.Session {
	return &sessiondomain.Session{
		ID:        "sid-1",
		User:      sessiondomain.UserSnapshot{ID: "user-1", Role: userdomain.RolePilot, MustChangePassword: mustChange},
		CreatedAt: time.Now(),
	}
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := GetIdentity(r.Context())
		w.Write([]byte(id.UserID + "|" + id.SessionID + "|" + id.Token))
	})
}

func TestSessionAuth(t *testing.T) {
	sessions := &mockSessions{byToken: map[string]*sessiondomain.Session{"good": testSession(false)}}
	h := SessionAuth(sessions, zerolog.Nop())(echoIdentity())

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{"valid", "Bearer good", http.StatusOK, "user-1|sid-1|good"},
		{"unknown", "Bearer bad", http.StatusUnauthorized, ""},
		{"missing", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestSessionAuth_StoreFailure(t *testing.T) {
	h := SessionAuth(&mockSessions{err: autherr.Internal(errors.New("redis down"))}, zerolog.Nop())(echoIdentity())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Session-Token", "any")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAccessAuth(t *testing.T) {
	tp, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sessions := &mockSessions{byID: map[string]*sessiondomain.Session{"sid-1": testSession(false)}}
	h := AccessAuth(tp, sessions, zerolog.Nop())(echoIdentity())

	live, err := tp.IssueAccess("sid-1", "user-1", "jdoe", "PILOT")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	revoked, _ := tp.IssueAccess("sid-gone", "user-1", "jdoe", "PILOT")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"live session", live.Token, http.StatusOK},
		{"revoked session", revoked.Token, http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/mobile/auth/me", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequirePasswordCurrent(t *testing.T) {
	h := RequirePasswordCurrent(echoIdentity())
	for _, mustChange := range []bool{false, true} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(WithIdentity(r.Context(), IdentityFromSession(testSession(mustChange), "t")))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		want := http.StatusOK
		if mustChange {
			want = http.StatusForbidden
		}
		if rec.Code != want {
			t.Errorf("mustChange=%v: status = %d, want %d", mustChange, rec.Code, want)
		}
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	h := Recover(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestRequestLog_SkipsPaths(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLog(zerolog.New(&buf), map[string]bool{"/api/health": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if buf.Len() != 0 {
		t.Errorf("health should not be logged: %s", buf.String())
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	if !strings.Contains(buf.String(), `"status":418`) {
		t.Errorf("log = %s", buf.String())
	}
}
