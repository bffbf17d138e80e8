package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts login outcomes and session revocations. It satisfies the session
// manager's Observer.
type AuthMetrics struct {
	logins  metric.Int64Counter
	revoked metric.Int64Counter
}

var (
	outcomeSuccess = metric.WithAttributes(attribute.String("outcome", "success"))
	outcomeFailure = metric.WithAttributes(attribute.String("outcome", "failure"))
	outcomeLocked  = metric.WithAttributes(attribute.String("outcome", "locked_out"))
)

// NewAuthMetrics registers the counters on mp.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter(instrumentationName)
	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	revoked, err := meter.Int64Counter("auth.sessions.revoked",
		metric.WithDescription("Sessions revoked by logout, password change or administrator"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{logins: logins, revoked: revoked}, nil
}

func (m *AuthMetrics) LoginSucceeded(ctx context.Context) { m.logins.Add(ctx, 1, outcomeSuccess) }
func (m *AuthMetrics) LoginFailed(ctx context.Context)    { m.logins.Add(ctx, 1, outcomeFailure) }
func (m *AuthMetrics) LockedOut(ctx context.Context)      { m.logins.Add(ctx, 1, outcomeLocked) }

func (m *AuthMetrics) SessionsRevoked(ctx context.Context, n int) {
	if n > 0 {
		m.revoked.Add(ctx, int64(n))
	}
}
