package observability

import (
	"testing"

	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/stretchr/testify/assert"
)

func clearObservabilityEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DEPLOYMENT_ENV", "SERVICE_VERSION", "OTEL_SERVICE_NAME", "LOG_LEVEL", "LOG_FORMAT",
		"OTEL_ENABLED", "OTEL_TRACES_ENABLED", "OTEL_METRICS_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "OTEL_EXPORTER_OTLP_METRICS_PROTOCOL",
		"OTEL_SAMPLING_RATIO", "LOG_FILE_MAX_SIZE_MB", "LOG_FILE_MAX_AGE_DAYS", "LOG_FILE_MAX_BACKUPS", "LOG_FILE_COMPRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDevDefaults(t *testing.T) {
	clearObservabilityEnv(t)
	cfg := LoadConfig(config.Config{AppName: "reviewboost-api", Environment: "development"})

	assert.Equal(t, "reviewboost-api", cfg.ServiceName)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.TracesEnabled)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigProductionDefaults(t *testing.T) {
	clearObservabilityEnv(t)
	cfg := LoadConfig(config.Config{Environment: "production", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.TracesEnabled)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.TracesProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
	assert.Equal(t, LogRotation{MaxSizeMB: 100, MaxAgeDays: 14, Backups: 5, Compress: true}, cfg.LogRotation)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearObservabilityEnv(t)
	t.Setenv("OTEL_SERVICE_NAME", "rb-worker")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_METRICS_ENABLED", "off")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", "grpc")
	t.Setenv("OTEL_SAMPLING_RATIO", "4")
	t.Setenv("LOG_FILE_MAX_SIZE_MB", "25")
	t.Setenv("LOG_FILE_COMPRESS", "false")

	cfg := LoadConfig(config.Config{AppName: "reviewboost", Environment: "dev"})

	assert.Equal(t, "rb-worker", cfg.ServiceName)
	assert.True(t, cfg.TracesEnabled)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "http", cfg.TracesProtocol)
	assert.Equal(t, "grpc", cfg.MetricsProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.Equal(t, 25, cfg.LogRotation.MaxSizeMB)
	assert.False(t, cfg.LogRotation.Compress)
}

func TestSubConfigsCarryServiceIdentity(t *testing.T) {
	clearObservabilityEnv(t)
	cfg := LoadConfig(config.Config{AppName: "reviewboost", AppVersion: "1.2.3", Environment: "staging"})

	logCfg := cfg.loggerConfig()
	assert.Equal(t, "reviewboost", logCfg.ServiceName)
	assert.Equal(t, "1.2.3", logCfg.Version)
	assert.Equal(t, cfg.LogRotation.Backups, logCfg.FileBackups)

	traceCfg := cfg.tracingConfig()
	assert.Equal(t, cfg.TracesEnabled, traceCfg.Enabled)
	assert.Equal(t, "staging", traceCfg.Environment)

	metricCfg := cfg.metricsConfig()
	assert.Equal(t, cfg.MetricsProtocol, metricCfg.ExporterProtocol)
}
