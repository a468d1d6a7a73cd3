package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/reviewboost/internal/config"
)

const defaultServiceName = "reviewboost"

// Config is the observability view of the process configuration. Standard
// OTEL_* variables win over the app's own settings.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel    string
	LogFormat   string
	LogFile     string
	LogRotation LogRotation

	TracesEnabled        bool
	MetricsEnabled       bool
	OtelExporterEndpoint string
	TracesProtocol       string
	MetricsProtocol      string
	OtelSamplingRatio    float64
}

// LogRotation applies only when LogFile is set.
type LogRotation struct {
	MaxSizeMB  int
	MaxAgeDays int
	Backups    int
	Compress   bool
}

func LoadConfig(cfg config.Config) Config {
	environment := strings.TrimSpace(getenv("DEPLOYMENT_ENV", cfg.Environment))
	dev := isDevEnv(environment)

	serviceName := getenv("OTEL_SERVICE_NAME", strings.TrimSpace(cfg.AppName))
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	logFormat := "json"
	if dev {
		logFormat = "console"
	}

	otelEnabled := getenvBool("OTEL_ENABLED", !dev)
	protocol := strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))

	samplingDefault := 0.1
	if dev {
		samplingDefault = 1
	}

	return Config{
		ServiceName: serviceName,
		Environment: environment,
		Version:     strings.TrimSpace(getenv("SERVICE_VERSION", cfg.AppVersion)),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenv("LOG_FORMAT", logFormat)),
		LogFile:   strings.TrimSpace(cfg.LogFile),
		LogRotation: LogRotation{
			MaxSizeMB:  getenvInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxAgeDays: getenvInt("LOG_FILE_MAX_AGE_DAYS", 14),
			Backups:    getenvInt("LOG_FILE_MAX_BACKUPS", 5),
			Compress:   getenvBool("LOG_FILE_COMPRESS", true),
		},

		TracesEnabled:        getenvBool("OTEL_TRACES_ENABLED", otelEnabled),
		MetricsEnabled:       getenvBool("OTEL_METRICS_ENABLED", otelEnabled),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", strings.TrimSpace(cfg.OTLPEndpoint)),
		TracesProtocol:       strings.ToLower(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol)),
		MetricsProtocol:      strings.ToLower(getenv("OTEL_EXPORTER_OTLP_METRICS_PROTOCOL", protocol)),
		OtelSamplingRatio:    clampRatio(getenvFloat("OTEL_SAMPLING_RATIO", samplingDefault)),
	}
}

// Debug turns on verbose logging and gin debug output.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func clampRatio(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}
