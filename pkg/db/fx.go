package db

import (
	"context"
	"time"

	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/observability"
	obslogger "github.com/smallbiznis/reviewboost/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(FromConfig),
	fx.Provide(Open),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	App       config.Config
	Obs       observability.Config
	Log       *zap.Logger
}

// Open connects the configured database, installs tracing and pool metrics,
// and closes the pool on shutdown.
func Open(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig(p.Obs.Debug())),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(p.Config.Name),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return nil, err
	}

	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.App.AppName,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := p.Config.MaxOpenConn
	if p.Config.Type == TypeSQLite || p.Config.Type == "" {
		maxOpen = 1
	}
	sqlDB.SetMaxIdleConns(p.Config.MaxIdleConn)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(p.Config.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(p.Config.ConnMaxIdleTime) * time.Second)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(context.Context) error {
			p.Log.Info("closing database pool")
			return sqlDB.Close()
		},
	})

	p.Log.Info("database connected", zap.String("type", p.Config.Type))
	return conn, nil
}
