package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes review lifecycle instruments.
type Metrics struct {
	requestsGenerated metric.Int64Counter
	generateFailures  metric.Int64Counter
	dispatchOutcomes  metric.Int64Counter
	clicks            metric.Int64Counter
	codeCollisions    metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "reviewboost"
	}
	meter := provider.Meter(name)

	requestsGenerated, err := meter.Int64Counter("reviewboost_requests_generated_total")
	if err != nil {
		return nil, err
	}
	generateFailures, err := meter.Int64Counter("reviewboost_generate_failures_total")
	if err != nil {
		return nil, err
	}
	dispatchOutcomes, err := meter.Int64Counter("reviewboost_dispatch_total")
	if err != nil {
		return nil, err
	}
	clicks, err := meter.Int64Counter("reviewboost_clicks_total")
	if err != nil {
		return nil, err
	}
	codeCollisions, err := meter.Int64Counter("reviewboost_short_code_collisions_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("reviewboost_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestsGenerated: requestsGenerated,
		generateFailures:  generateFailures,
		dispatchOutcomes:  dispatchOutcomes,
		clicks:            clicks,
		codeCollisions:    codeCollisions,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// NewNoop returns instruments backed by a no-op provider. Used in tests.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordGenerated(ctx context.Context, carrier string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("carrier", strings.TrimSpace(carrier)))
	m.requestsGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordGenerateFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.generateFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDispatch counts one dispatch attempt. outcome is "sent" or an error kind.
func (m *Metrics) RecordDispatch(ctx context.Context, backend, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("backend", strings.TrimSpace(backend)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.dispatchOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordClick(ctx context.Context, firstClick bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("first_click", firstClick))
	m.clicks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCodeCollision(ctx context.Context) {
	if m == nil {
		return
	}
	m.codeCollisions.Add(ctx, 1)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Short codes, contacts and business ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"carrier":     {},
	"backend":     {},
	"outcome":     {},
	"kind":        {},
	"first_click": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
