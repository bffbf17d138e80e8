// Package handler serves the readiness endpoint.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/platform/httpx"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB and by the Redis ping adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server reports service health. Nil dependencies are skipped.
type Server struct {
	db     Pinger
	redis  Pinger
	policy PolicyChecker
	log    zerolog.Logger
}

// NewServer returns a health Server.
func NewServer(db, redis Pinger, policy PolicyChecker, log zerolog.Logger) *Server {
	return &Server{db: db, redis: redis, policy: policy, log: log}
}

type response struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles GET /api/health. It answers 503 when any dependency fails.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	record := func(name string, err error) {
		if err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = "down"
			healthy = false
			return
		}
		checks[name] = "up"
	}
	if s.db != nil {
		record("database", s.db.PingContext(ctx))
	}
	if s.redis != nil {
		record("redis", s.redis.PingContext(ctx))
	}
	if s.policy != nil {
		record("policy", s.policy.HealthCheck(ctx))
	}

	resp := response{Status: "ok", Timestamp: time.Now().UTC(), Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}
