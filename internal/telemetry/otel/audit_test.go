package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"dfp-neo/backend/internal/audit/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attrs(rec otellog.Record) map[string]string {
	out := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestNewAuditPublisher_NilProvider_Drops(t *testing.T) {
	p := NewAuditPublisher(nil)
	if err := p.Publish(context.Background(), &domain.Event{ID: "a1", Action: domain.ActionLogin}); err != nil {
		t.Errorf("Publish: %v", err)
	}
}

func TestPublish_NilEvent(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewAuditPublisher(provider).Publish(context.Background(), nil); err != nil {
		t.Errorf("Publish(ctx, nil): %v", err)
	}
}

func TestPublish_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	err := NewAuditPublisherWithLogger(cap).Publish(context.Background(), &domain.Event{
		ID:           "a1",
		ActorUserID:  "admin",
		Action:       domain.ActionPasswordResetForced,
		TargetUserID: "u1",
		Metadata:     map[string]any{"key": "value"},
		IPAddress:    "10.0.0.1",
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := string(cap.rec.Body().AsBytes()); got != `{"key":"value"}` {
		t.Errorf("body = %q", got)
	}
	if !cap.rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", cap.rec.Timestamp(), created)
	}
	want := map[string]string{
		"audit_id": "a1", "actor_user_id": "admin", "action": "PASSWORD_RESET_FORCED",
		"target_user_id": "u1", "ip_address": "10.0.0.1",
	}
	got := attrs(cap.rec)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %q = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["user_agent"]; ok {
		t.Error("empty user_agent should be omitted")
	}
}

func TestPublish_EmptyMetadata_NoBody(t *testing.T) {
	cap := &recordCapture{}
	if err := NewAuditPublisherWithLogger(cap).Publish(context.Background(), &domain.Event{ID: "a1", Action: domain.ActionLogout}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !cap.rec.Body().Empty() {
		t.Error("body should be empty when metadata is nil")
	}
	if cap.rec.Timestamp().IsZero() {
		t.Error("zero CreatedAt should default to now")
	}
}
