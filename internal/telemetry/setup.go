// Package telemetry wires OpenTelemetry metrics for shopguard: an OTLP
// MeterProvider and the counters recorded by the security layer.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ServiceName is reported as the OTel service.name resource attribute.
const ServiceName = "shopguard"

// Provider holds the MeterProvider and its shutdown function.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	Shutdown      func(context.Context) error
}

// NewProvider creates a MeterProvider exporting via OTLP gRPC to endpoint.
// endpoint may be host:port or a URL; only host:port is used. If endpoint is
// empty, a provider without readers is returned and Shutdown is a no-op.
// Non-https endpoints, or insecure=true, disable TLS.
func NewProvider(ctx context.Context, endpoint string, insecure bool) (*Provider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &Provider{
			MeterProvider: sdkmetric.NewMeterProvider(),
			Shutdown:      func(context.Context) error { return nil },
		}, nil
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	insecure = insecure || u.Scheme != "https"

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(u.Host)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))),
	)
	return &Provider{
		MeterProvider: mp,
		Shutdown: func(ctx context.Context) error {
			if err := mp.Shutdown(ctx); err != nil {
				slog.Warn("telemetry: shutdown", "error", err)
				return err
			}
			return nil
		},
	}, nil
}

// SetGlobal installs the MeterProvider as the global one.
func (p *Provider) SetGlobal() {
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
