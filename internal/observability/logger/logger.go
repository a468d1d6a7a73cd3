package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/reviewboost/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	// File, when set, duplicates log output into a size-rotated file.
	File         string
	FileMaxSize  int
	FileMaxAge   int
	FileBackups  int
	FileCompress bool

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds a structured zap.Logger and registers lifecycle hooks.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if normalizeFormat(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}
	var rotator *lumberjack.Logger
	if file := strings.TrimSpace(cfg.File); file != "" {
		rotator = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    defaultInt(cfg.FileMaxSize, 100),
			MaxAge:     defaultInt(cfg.FileMaxAge, 14),
			MaxBackups: defaultInt(cfg.FileBackups, 5),
			Compress:   cfg.FileCompress,
		}
		sinks = append(sinks, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), atomicLevel)

	window := cfg.SamplingWindow
	if window == 0 {
		window = time.Second
	}
	core = zapcore.NewSamplerWithOptions(core, window, defaultInt(cfg.SamplingInitial, 100), defaultInt(cfg.SamplingThereafter, 100))

	options := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.IncludeCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "reviewboost"
	}

	logger := zap.New(core, options...).With(
		zap.String("service", serviceName),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = logger.Sync()
				if rotator != nil {
					return rotator.Close()
				}
				return nil
			},
		})
	}

	return logger, nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" {
		return "console"
	}
	return "json"
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// FromContext returns a logger enriched with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger with correlation fields.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := []zap.Field{
		zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
	}
	if businessID := obscontext.BusinessIDFromContext(ctx); businessID != "" {
		fields = append(fields, zap.String("business_id", businessID))
	}
	fields = append(fields, traceFieldsFromContext(ctx)...)

	return base.With(fields...)
}

func traceFieldsFromContext(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
