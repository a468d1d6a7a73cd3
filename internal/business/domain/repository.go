package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, business *Business) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Business, error)
	FindByPlaceID(ctx context.Context, db *gorm.DB, placeID string) (*Business, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Business, error)
	UpdateMetadata(ctx context.Context, db *gorm.DB, business *Business) error
	List(ctx context.Context, db *gorm.DB) ([]*Business, error)
}
