package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"dfp-neo/backend/internal/audit/domain"
)

const instrumentationName = "dfp-neo.auth"

// recordEmitter is the part of otellog.Logger the publisher uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditPublisher sends audit events as OTel log records.
type AuditPublisher struct {
	logger recordEmitter
}

// NewAuditPublisher returns a publisher on provider. A nil provider yields a publisher
// that drops everything.
func NewAuditPublisher(provider *sdklog.LoggerProvider) *AuditPublisher {
	if provider == nil {
		return &AuditPublisher{}
	}
	return &AuditPublisher{logger: provider.Logger(instrumentationName)}
}

// NewAuditPublisherWithLogger is used by tests to capture records.
func NewAuditPublisherWithLogger(l recordEmitter) *AuditPublisher {
	return &AuditPublisher{logger: l}
}

// Publish converts e to a log record and emits it. Metadata becomes the JSON body.
func (p *AuditPublisher) Publish(ctx context.Context, e *domain.Event) error {
	if p.logger == nil || e == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	if len(e.Metadata) > 0 {
		body, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.BytesValue(body))
	}
	rec.AddAttributes(otellog.String("action", string(e.Action)))
	for _, kv := range []struct{ k, v string }{
		{"audit_id", e.ID},
		{"actor_user_id", e.ActorUserID},
		{"target_user_id", e.TargetUserID},
		{"ip_address", e.IPAddress},
		{"user_agent", e.UserAgent},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	p.logger.Emit(ctx, rec)
	return nil
}
