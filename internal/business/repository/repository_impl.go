package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/internal/business/domain"
	"gorm.io/gorm"
)

const businessColumns = `id, name, slug, google_place_id, address, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, business *domain.Business) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO businesses (id, name, slug, google_place_id, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		business.ID,
		business.Name,
		business.Slug,
		business.GooglePlaceID,
		business.Address,
		business.CreatedAt,
		business.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Business, error) {
	return r.findOne(ctx, db, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
}

func (r *repo) FindByPlaceID(ctx context.Context, db *gorm.DB, placeID string) (*domain.Business, error) {
	return r.findOne(ctx, db, `SELECT `+businessColumns+` FROM businesses WHERE google_place_id = ?`, placeID)
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Business, error) {
	return r.findOne(ctx, db, `SELECT `+businessColumns+` FROM businesses WHERE slug = ?`, slug)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*domain.Business, error) {
	var business domain.Business
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&business).Error; err != nil {
		return nil, err
	}
	if business.ID == 0 {
		return nil, nil
	}
	return &business, nil
}

func (r *repo) UpdateMetadata(ctx context.Context, db *gorm.DB, business *domain.Business) error {
	return db.WithContext(ctx).Exec(
		`UPDATE businesses SET name = ?, address = ?, updated_at = ? WHERE id = ?`,
		business.Name,
		business.Address,
		business.UpdatedAt,
		business.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Business, error) {
	var items []*domain.Business
	err := db.WithContext(ctx).Raw(
		`SELECT ` + businessColumns + ` FROM businesses ORDER BY name ASC, id ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
