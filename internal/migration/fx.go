package migration

import (
	dbpkg "github.com/smallbiznis/reviewboost/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg dbpkg.Config, log *zap.Logger) error {
		if cfg.Type != dbpkg.TypePostgres && cfg.Type != "postgresql" {
			log.Info("applying schema with auto migrate", zap.String("type", cfg.Type))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying embedded migrations")
		return RunMigrations(sqlDB)
	}),
)
