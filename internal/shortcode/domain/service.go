package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, code string, createdAt time.Time) error
	Retire(ctx context.Context, db *gorm.DB, code string, retiredAt time.Time) (bool, error)
	Find(ctx context.Context, db *gorm.DB, code string) (*ShortCode, error)
}

// Registry issues codes that are unique across the lifetime of the store.
type Registry interface {
	Allocate(ctx context.Context) (string, error)
	// Retire tombstones code inside the caller's transaction.
	Retire(ctx context.Context, tx *gorm.DB, code string) error
}

// Source draws a random candidate code of the given length.
type Source func(length int) (string, error)

var (
	ErrCodeSpaceExhausted = errors.New("code_space_exhausted")
	ErrNotFound           = errors.New("not_found")
)
