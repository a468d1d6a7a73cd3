package db

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTest opens a private in-memory SQLite database. A single connection is
// kept open so the database lives as long as the handle.
func NewTest() (*gorm.DB, error) {
	dsn := sqliteDSN(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return conn, nil
}
