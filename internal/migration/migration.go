package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	reviewrequestdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	shortcodedomain "github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists the persisted types in dependency order.
func Models() []interface{} {
	return []interface{}{
		&businessdomain.Business{},
		&shortcodedomain.ShortCode{},
		&reviewrequestdomain.ReviewRequest{},
		&reviewrequestdomain.DispatchAttempt{},
	}
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and
// mysql, and by tests.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
