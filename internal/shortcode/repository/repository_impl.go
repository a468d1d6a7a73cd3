package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code string, createdAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO short_codes (code, created_at) VALUES (?, ?)`,
		code,
		createdAt,
	).Error
}

func (r *repo) Retire(ctx context.Context, db *gorm.DB, code string, retiredAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE short_codes SET retired_at = ? WHERE code = ? AND retired_at IS NULL`,
		retiredAt,
		code,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, code string) (*domain.ShortCode, error) {
	var item domain.ShortCode
	err := db.WithContext(ctx).Raw(
		`SELECT code, created_at, retired_at FROM short_codes WHERE code = ?`,
		code,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.Code == "" {
		return nil, nil
	}
	return &item, nil
}
