package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/pkg/db/pagination"
	"gorm.io/gorm"
)

type StatusCount struct {
	Status Status
	Count  int64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *ReviewRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ReviewRequest, error)
	// FindActiveByCode ignores requests whose code has been retired.
	FindActiveByCode(ctx context.Context, db *gorm.DB, code string) (*ReviewRequest, error)
	ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID, page pagination.Pagination, cursor *pagination.Cursor) ([]*ReviewRequest, error)
	Recent(ctx context.Context, db *gorm.DB, businessID snowflake.ID, limit int) ([]*ReviewRequest, error)

	// The Mark* methods are compare-and-set updates. They report whether a row
	// was changed; a false result means the row was missing or in a state the
	// transition does not accept.
	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error)
	MarkClicked(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ReplaceText(ctx context.Context, db *gorm.DB, id snowflake.ID, text, code string, at time.Time) (bool, error)

	// ClaimDispatch takes the dispatch lease of a sendable request. Claims
	// made before staleBefore no longer block a new one.
	ClaimDispatch(ctx context.Context, db *gorm.DB, id snowflake.ID, maxAttempts int, at, staleBefore time.Time) (bool, error)
	ReleaseDispatch(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	InsertAttempt(ctx context.Context, db *gorm.DB, attempt *DispatchAttempt) error
	ListAttempts(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]*DispatchAttempt, error)

	CountByStatus(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]StatusCount, error)
	CountSent(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (int64, error)
	LatestTimestamp(ctx context.Context, db *gorm.DB, businessID snowflake.ID, column string) (*time.Time, error)
}
