package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/meatandeat/shopguard"

// Metrics holds the counters recorded by the security layer. A nil *Metrics
// records nothing.
type Metrics struct {
	auditEvents metric.Int64Counter
	logins      metric.Int64Counter
	alerts      metric.Int64Counter
	rateLimited metric.Int64Counter
}

// NewMetrics creates the counters on a meter from provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	auditEvents, err := meter.Int64Counter("shopguard.audit.events",
		metric.WithDescription("Security audit events recorded, by event"))
	if err != nil {
		return nil, err
	}
	logins, err := meter.Int64Counter("shopguard.logins",
		metric.WithDescription("Login attempts, by result"))
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter("shopguard.alerts",
		metric.WithDescription("Security alerts raised, by type"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("shopguard.ratelimit.denied",
		metric.WithDescription("Requests denied by the login rate limiter"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		auditEvents: auditEvents,
		logins:      logins,
		alerts:      alerts,
		rateLimited: rateLimited,
	}, nil
}

func (m *Metrics) AuditEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.auditEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// Login counts an attempt; result is "success" or a failure reason.
func (m *Metrics) Login(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) Alert(ctx context.Context, typ string) {
	if m == nil {
		return
	}
	m.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("type", typ)))
}

func (m *Metrics) RateLimited(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1)
}
