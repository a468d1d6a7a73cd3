package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/reviewboost/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the tracer provider.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// NewProvider configures the OTLP exporter and registers the tracer provider.
// When tracing is disabled spans are still created so trace ids reach the logs,
// but nothing is exported.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SamplingRatio)))),
		sdktrace.WithSpanProcessor(&requestIDSpanProcessor{}),
	}

	if cfg.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		exporter, err := newExporter(ctx, cfg.ExporterProtocol, cfg.ExporterEndpoint)
		cancel()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down tracer provider")
				return tp.Shutdown(ctx)
			},
		})
	}

	log.Info("tracing initialized",
		zap.Bool("export", cfg.Enabled),
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.Float64("sampling_ratio", clampRatio(cfg.SamplingRatio)),
	)
	return tp, nil
}

func newExporter(ctx context.Context, protocol, endpoint string) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return 0
	case ratio >= 1:
		return 1
	default:
		return ratio
	}
}

type requestIDSpanProcessor struct{}

func (p *requestIDSpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	if id := obscontext.RequestIDFromContext(ctx); id != "" {
		s.SetAttributes(attribute.String("request_id", id))
	}
}

func (p *requestIDSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (p *requestIDSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *requestIDSpanProcessor) ForceFlush(context.Context) error { return nil }
