package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit/domain"
	"dfp-neo/backend/internal/audit/repository"
)

func seed(t *testing.T) *repository.MemoryRepository {
	t.Helper()
	repo := repository.NewMemoryRepository()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []domain.Event{
		{ID: "e1", ActorUserID: "u1", Action: domain.ActionLogin, CreatedAt: base},
		{ID: "e2", ActorUserID: "u1", Action: domain.ActionLogout, CreatedAt: base.Add(time.Hour)},
		{ID: "e3", ActorUserID: "admin", TargetUserID: "u1", Action: domain.ActionPasswordResetForced, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range events {
		if err := repo.Create(context.Background(), &events[i]); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	return repo
}

func list(t *testing.T, h *Handler, query string) (int, listResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/audit-logs"+query, nil))
	var resp listResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec.Code, resp
}

func TestList_NewestFirst(t *testing.T) {
	h := NewHandler(seed(t), zerolog.Nop())
	code, resp := list(t, h, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Total != 3 || len(resp.Logs) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", resp.Total, len(resp.Logs))
	}
	if resp.Logs[0].ID != "e3" {
		t.Errorf("first = %s, want e3", resp.Logs[0].ID)
	}
	if resp.Limit != domain.DefaultListLimit {
		t.Errorf("limit = %d, want %d", resp.Limit, domain.DefaultListLimit)
	}
}

func TestList_Filters(t *testing.T) {
	h := NewHandler(seed(t), zerolog.Nop())
	tests := []struct {
		query string
		want  int
	}{
		{"?action=LOGIN", 1},
		{"?actorUserId=u1", 2},
		{"?targetUserId=u1", 1},
		{"?from=2025-03-01T09:30:00Z", 2},
		{"?to=2025-03-01T09:30:00Z", 1},
		{"?limit=1&offset=1", 3},
	}
	for _, tt := range tests {
		code, resp := list(t, h, tt.query)
		if code != http.StatusOK {
			t.Errorf("%s: status = %d", tt.query, code)
			continue
		}
		if resp.Total != tt.want {
			t.Errorf("%s: total = %d, want %d", tt.query, resp.Total, tt.want)
		}
	}
	_, paged := list(t, h, "?limit=1&offset=1")
	if len(paged.Logs) != 1 || paged.Logs[0].ID != "e2" {
		t.Errorf("paged = %+v, want [e2]", paged.Logs)
	}
}

func TestList_BadQuery(t *testing.T) {
	h := NewHandler(seed(t), zerolog.Nop())
	for _, q := range []string{"?from=yesterday", "?limit=-1", "?offset=x"} {
		if code, _ := list(t, h, q); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, code)
		}
	}
}
