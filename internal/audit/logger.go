// Package audit records security-relevant actions. Recording is best-effort: a
// failing sink is logged and never fails the operation being audited.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit/domain"
	auditrepo "dfp-neo/backend/internal/audit/repository"
)

// Recorder accepts audit events. Implementations never block the caller on a slow sink
// for long and never return errors.
type Recorder interface {
	Record(ctx context.Context, e domain.Event)
}

// Publisher forwards a persisted event to a secondary sink (Kafka, OTel logs).
type Publisher interface {
	Publish(ctx context.Context, e *domain.Event) error
}

// MetaExtractor returns the client IP and user agent attached to ctx by the HTTP layer.
type MetaExtractor func(context.Context) (ip, userAgent string)

// Logger persists events to the repository and fans them out to publishers.
type Logger struct {
	repo       auditrepo.Repository
	publishers []Publisher
	meta       MetaExtractor
	log        zerolog.Logger
	nowF       func() time.Time
}

// NewLogger returns a Logger. repo and meta may be nil.
func NewLogger(repo auditrepo.Repository, meta MetaExtractor, log zerolog.Logger, publishers ...Publisher) *Logger {
	return &Logger{
		repo:       repo,
		publishers: publishers,
		meta:       meta,
		log:        log.With().Str("component", "audit").Logger(),
		nowF:       time.Now,
	}
}

// Enrich fills the ID, timestamp and request metadata of e when unset.
func (l *Logger) Enrich(ctx context.Context, e domain.Event) domain.Event {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.nowF().UTC()
	}
	if l.meta != nil && (e.IPAddress == "" || e.UserAgent == "") {
		ip, ua := l.meta(ctx)
		if e.IPAddress == "" {
			e.IPAddress = ip
		}
		if e.UserAgent == "" {
			e.UserAgent = ua
		}
	}
	if e.IPAddress == "" {
		e.IPAddress = "unknown"
	}
	return e
}

// Record writes e synchronously. Errors are logged and dropped.
func (l *Logger) Record(ctx context.Context, e domain.Event) {
	e = l.Enrich(ctx, e)
	if l.repo != nil {
		if err := l.repo.Create(ctx, &e); err != nil {
			l.log.Error().Err(err).Str("action", string(e.Action)).Str("target_user_id", e.TargetUserID).Msg("failed to persist audit event")
		}
	}
	for _, p := range l.publishers {
		if err := p.Publish(ctx, &e); err != nil {
			l.log.Warn().Err(err).Str("action", string(e.Action)).Msg("failed to publish audit event")
		}
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, domain.Event) {}
