package observability

import (
	"github.com/smallbiznis/reviewboost/internal/observability/logger"
	"github.com/smallbiznis/reviewboost/internal/observability/metrics"
	"github.com/smallbiznis/reviewboost/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the logger, the tracer provider, the OTel domain counters
// and the Prometheus HTTP metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.loggerConfig,
		logger.New,
		Config.tracingConfig,
		tracing.NewProvider,
		Config.metricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewRegistry,
		metrics.NewHTTPMetrics,
	),
	// Nothing else depends on the tracer provider; force it so the global
	// propagator and exporter are installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func (c Config) loggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		File:                c.LogFile,
		FileMaxSize:         c.LogRotation.MaxSizeMB,
		FileMaxAge:          c.LogRotation.MaxAgeDays,
		FileBackups:         c.LogRotation.Backups,
		FileCompress:        c.LogRotation.Compress,
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.TracesEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.TracesProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.MetricsEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.MetricsProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
