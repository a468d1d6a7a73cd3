package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	"github.com/smallbiznis/reviewboost/pkg/db/pagination"
	"gorm.io/gorm"
)

const requestColumns = `rr.id, rr.business_id, rr.short_code, rr.customer_contact, rr.carrier,
	rr.review_text, rr.status, rr.send_attempts, rr.last_error,
	rr.created_at, rr.sent_at, rr.clicked_at, rr.updated_at, rr.dispatch_claimed_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, req *domain.ReviewRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO review_requests (id, business_id, short_code, customer_contact, carrier, review_text,
			status, send_attempts, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.BusinessID,
		req.ShortCode,
		req.CustomerContact,
		req.Carrier,
		req.ReviewText,
		req.Status,
		req.SendAttempts,
		req.LastError,
		req.CreatedAt,
		req.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ReviewRequest, error) {
	return r.findOne(ctx, db,
		`SELECT `+requestColumns+` FROM review_requests rr WHERE rr.id = ?`,
		id,
	)
}

func (r *repo) FindActiveByCode(ctx context.Context, db *gorm.DB, code string) (*domain.ReviewRequest, error) {
	return r.findOne(ctx, db,
		`SELECT `+requestColumns+`
		 FROM review_requests rr
		 JOIN short_codes sc ON sc.code = rr.short_code
		 WHERE rr.short_code = ? AND sc.retired_at IS NULL`,
		code,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*domain.ReviewRequest, error) {
	var item domain.ReviewRequest
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID, page pagination.Pagination, cursor *pagination.Cursor) ([]*domain.ReviewRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM review_requests rr WHERE rr.business_id = ?`
	args := []interface{}{businessID}

	if cursor != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		query += ` AND (rr.created_at < ? OR (rr.created_at = ? AND rr.id < ?))`
		args = append(args, createdAt.UTC(), createdAt.UTC(), id)
	}

	query += ` ORDER BY rr.created_at DESC, rr.id DESC LIMIT ?`
	args = append(args, page.Limit()+1)

	var items []*domain.ReviewRequest
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Recent(ctx context.Context, db *gorm.DB, businessID snowflake.ID, limit int) ([]*domain.ReviewRequest, error) {
	var items []*domain.ReviewRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM review_requests rr
		 WHERE rr.business_id = ?
		 ORDER BY rr.created_at DESC, rr.id DESC
		 LIMIT ?`,
		businessID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	return r.exec(ctx, db,
		`UPDATE review_requests
		 SET status = ?, sent_at = COALESCE(sent_at, ?), send_attempts = send_attempts + 1,
			last_error = '', dispatch_claimed_at = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		domain.StatusSent, at, at,
		id, domain.StatusGenerated, domain.StatusFailed,
	)
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error) {
	return r.exec(ctx, db,
		`UPDATE review_requests
		 SET status = ?, send_attempts = send_attempts + 1, last_error = ?,
			dispatch_claimed_at = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		domain.StatusFailed, reason, at,
		id, domain.StatusGenerated, domain.StatusSent, domain.StatusFailed,
	)
}

func (r *repo) MarkClicked(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	return r.exec(ctx, db,
		`UPDATE review_requests
		 SET status = ?, clicked_at = COALESCE(clicked_at, ?), updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusClicked, at, at,
		id, domain.StatusSent,
	)
}

func (r *repo) ReplaceText(ctx context.Context, db *gorm.DB, id snowflake.ID, text, code string, at time.Time) (bool, error) {
	return r.exec(ctx, db,
		`UPDATE review_requests
		 SET review_text = ?, short_code = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		text, code, at,
		id, domain.StatusGenerated, domain.StatusFailed,
	)
}

func (r *repo) ClaimDispatch(ctx context.Context, db *gorm.DB, id snowflake.ID, maxAttempts int, at, staleBefore time.Time) (bool, error) {
	return r.exec(ctx, db,
		`UPDATE review_requests
		 SET dispatch_claimed_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?) AND send_attempts < ?
			AND (dispatch_claimed_at IS NULL OR dispatch_claimed_at < ?)`,
		at, at,
		id, domain.StatusGenerated, domain.StatusFailed, maxAttempts,
		staleBefore,
	)
}

func (r *repo) ReleaseDispatch(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE review_requests SET dispatch_claimed_at = NULL WHERE id = ?`, id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM dispatch_attempts WHERE review_request_id = ?`, id,
	).Error; err != nil {
		return false, err
	}
	return r.exec(ctx, db, `DELETE FROM review_requests WHERE id = ?`, id)
}

func (r *repo) exec(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (bool, error) {
	result := db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertAttempt(ctx context.Context, db *gorm.DB, attempt *domain.DispatchAttempt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO dispatch_attempts (id, review_request_id, backend, outcome, error_kind, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.ReviewRequestID,
		attempt.Backend,
		attempt.Outcome,
		attempt.ErrorKind,
		attempt.Detail,
		attempt.CreatedAt,
	).Error
}

func (r *repo) ListAttempts(ctx context.Context, db *gorm.DB, requestID snowflake.ID) ([]*domain.DispatchAttempt, error) {
	var items []*domain.DispatchAttempt
	err := db.WithContext(ctx).Raw(
		`SELECT id, review_request_id, backend, outcome, error_kind, detail, created_at
		 FROM dispatch_attempts WHERE review_request_id = ?
		 ORDER BY created_at ASC, id ASC`,
		requestID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]domain.StatusCount, error) {
	var rows []domain.StatusCount
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count FROM review_requests WHERE business_id = ? GROUP BY status`,
		businessID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CountSent(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM review_requests WHERE business_id = ? AND sent_at IS NOT NULL`,
		businessID,
	).Scan(&count).Error
	return count, err
}

var timestampColumns = map[string]struct{}{
	"created_at": {},
	"sent_at":    {},
	"clicked_at": {},
}

// LatestTimestamp reads the newest value of one timestamp column. It orders
// rather than aggregates so drivers keep the column's declared type.
func (r *repo) LatestTimestamp(ctx context.Context, db *gorm.DB, businessID snowflake.ID, column string) (*time.Time, error) {
	if _, ok := timestampColumns[column]; !ok {
		return nil, fmt.Errorf("unsupported timestamp column %q", column)
	}

	var item domain.ReviewRequest
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT id, created_at, sent_at, clicked_at FROM review_requests
		 WHERE business_id = ? AND %[1]s IS NOT NULL
		 ORDER BY %[1]s DESC, id DESC LIMIT 1`, column),
		businessID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}

	switch column {
	case "sent_at":
		return item.SentAt, nil
	case "clicked_at":
		return item.ClickedAt, nil
	default:
		createdAt := item.CreatedAt
		return &createdAt, nil
	}
}
