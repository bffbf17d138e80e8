package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func check(t *testing.T, srv *Server) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var resp response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	code, resp := check(t, NewServer(nil, nil, nil, zerolog.Nop()))
	if code != http.StatusOK || resp.Status != "ok" {
		t.Errorf("got %d %q, want 200 ok", code, resp.Status)
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestHealthCheck_AllUp(t *testing.T) {
	code, resp := check(t, NewServer(&mockPinger{}, &mockPinger{}, &mockPolicyChecker{}, zerolog.Nop()))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	for _, name := range []string{"database", "redis", "policy"} {
		if resp.Checks[name] != "up" {
			t.Errorf("checks[%s] = %q, want up", name, resp.Checks[name])
		}
	}
}

func TestHealthCheck_PingerFailure(t *testing.T) {
	code, resp := check(t, NewServer(&mockPinger{pingErr: errors.New("connection refused")}, nil, nil, zerolog.Nop()))
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if resp.Status != "degraded" || resp.Checks["database"] != "down" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealthCheck_RedisFailure(t *testing.T) {
	code, resp := check(t, NewServer(&mockPinger{}, &mockPinger{pingErr: errors.New("timeout")}, nil, zerolog.Nop()))
	if code != http.StatusServiceUnavailable || resp.Checks["redis"] != "down" {
		t.Errorf("got %d %+v", code, resp)
	}
	if resp.Checks["database"] != "up" {
		t.Errorf("database = %q, want up", resp.Checks["database"])
	}
}

func TestHealthCheck_PolicyCheckerFailure(t *testing.T) {
	code, resp := check(t, NewServer(nil, nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, zerolog.Nop()))
	if code != http.StatusServiceUnavailable || resp.Checks["policy"] != "down" {
		t.Errorf("got %d %+v", code, resp)
	}
}
