package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/internal/business"
	"github.com/smallbiznis/reviewboost/internal/clock"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/migration"
	"github.com/smallbiznis/reviewboost/internal/observability"
	"github.com/smallbiznis/reviewboost/internal/outreach"
	"github.com/smallbiznis/reviewboost/internal/providers"
	"github.com/smallbiznis/reviewboost/internal/ratelimit"
	"github.com/smallbiznis/reviewboost/internal/redirect"
	"github.com/smallbiznis/reviewboost/internal/reviewrequest"
	"github.com/smallbiznis/reviewboost/internal/server"
	"github.com/smallbiznis/reviewboost/internal/shortcode"
	"github.com/smallbiznis/reviewboost/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		// Collaborators
		providers.Module,

		// Domains
		business.Module,
		shortcode.Module,
		reviewrequest.Module,
		outreach.Module,
		redirect.Module,

		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
