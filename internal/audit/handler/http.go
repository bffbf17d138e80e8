// Package handler serves the audit log listing.
package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit/domain"
	"dfp-neo/backend/internal/audit/repository"
	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/platform/httpx"
)

// Handler lists audit events.
type Handler struct {
	repo repository.Repository
	log  zerolog.Logger
}

func NewHandler(repo repository.Repository, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

type listResponse struct {
	Logs   []*domain.Event `json:"logs"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// List handles GET /api/admin/audit-logs?actorUserId=&targetUserId=&action=&from=&to=&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	f = f.Normalize()
	logs, total, err := h.repo.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, h.log, autherr.Internal(err))
		return
	}
	if logs == nil {
		logs = []*domain.Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Logs: logs, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func parseFilter(q url.Values) (domain.Filter, error) {
	f := domain.Filter{
		ActorUserID:  q.Get("actorUserId"),
		TargetUserID: q.Get("targetUserId"),
		Action:       domain.Action(q.Get("action")),
	}
	var err error
	if f.From, err = parseTime(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q, "to"); err != nil {
		return f, err
	}
	if f.Limit, err = parseInt(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseInt(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, autherr.Invalid(key + " must be an RFC 3339 timestamp")
	}
	return t, nil
}

func parseInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, autherr.Invalid(key + " must be a non-negative integer")
	}
	return n, nil
}
