package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/internal/clock"
	"github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	shortcodedomain "github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	"github.com/smallbiznis/reviewboost/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Registry shortcodedomain.Registry
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	registry shortcodedomain.Registry
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reviewrequest.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		registry: p.Registry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.ReviewRequest, error) {
	if req.BusinessID == 0 {
		return domain.ReviewRequest{}, domain.ErrInvalidBusiness
	}
	code, ok := shortcodedomain.Normalize(req.ShortCode)
	if !ok {
		return domain.ReviewRequest{}, domain.ErrInvalidShortCode
	}
	contact := strings.TrimSpace(req.CustomerContact)
	if contact == "" {
		return domain.ReviewRequest{}, domain.ErrInvalidContact
	}
	text := strings.TrimSpace(req.ReviewText)
	if text == "" {
		return domain.ReviewRequest{}, domain.ErrInvalidText
	}

	now := s.clock.Now()
	item := domain.ReviewRequest{
		ID:              s.genID.Generate(),
		BusinessID:      req.BusinessID,
		ShortCode:       code,
		CustomerContact: contact,
		Carrier:         strings.ToLower(strings.TrimSpace(req.Carrier)),
		ReviewText:      text,
		Status:          domain.StatusGenerated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, &item); err != nil {
		return domain.ReviewRequest{}, err
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.ReviewRequest, error) {
	return s.load(ctx, s.db, id)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (domain.ReviewRequest, error) {
	if id == 0 {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	item, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	if item == nil {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	return *item, nil
}

// GetByCode resolves a public code. Malformed, unknown and retired codes are
// indistinguishable.
func (s *Service) GetByCode(ctx context.Context, code string) (domain.ReviewRequest, error) {
	normalized, ok := shortcodedomain.Normalize(code)
	if !ok {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	item, err := s.repo.FindActiveByCode(ctx, s.db, normalized)
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	if item == nil {
		return domain.ReviewRequest{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListByBusiness(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.BusinessID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidBusiness
	}

	var cursor *pagination.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, err
		}
		cursor = decoded
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.ListByBusiness(ctx, s.db, req.BusinessID, page, cursor)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, page.Limit(), func(item *domain.ReviewRequest) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	return domain.ListResponse{
		PageInfo:       *pageInfo,
		ReviewRequests: derefAll(items),
	}, nil
}

func (s *Service) Recent(ctx context.Context, businessID snowflake.ID, limit int) ([]domain.ReviewRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	items, err := s.repo.Recent(ctx, s.db, businessID, limit)
	if err != nil {
		return nil, err
	}
	return derefAll(items), nil
}

// MarkSent records a backend acknowledgment. A clicked request is left as is
// and returned without error so a late resend never reopens it.
func (s *Service) MarkSent(ctx context.Context, id snowflake.ID) (domain.ReviewRequest, error) {
	changed, err := s.repo.MarkSent(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return domain.ReviewRequest{}, err
	}

	current, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	if changed {
		return current, nil
	}
	if current.Status == domain.StatusClicked {
		s.log.Debug("mark sent ignored for clicked request", zap.String("review_request_id", id.String()))
		return current, nil
	}
	return current, s.invalidTransition(current, domain.StatusSent)
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, reason string) (domain.ReviewRequest, error) {
	changed, err := s.repo.MarkFailed(ctx, s.db, id, truncateReason(reason), s.clock.Now())
	if err != nil {
		return domain.ReviewRequest{}, err
	}

	current, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	if changed {
		return current, nil
	}
	return current, s.invalidTransition(current, domain.StatusFailed)
}

// MarkClicked is idempotent. Concurrent callers race on a single conditional
// update, so the first click timestamp is the one kept.
func (s *Service) MarkClicked(ctx context.Context, id snowflake.ID) (domain.ReviewRequest, error) {
	changed, err := s.repo.MarkClicked(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return domain.ReviewRequest{}, err
	}

	current, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	if changed || current.Status == domain.StatusClicked {
		return current, nil
	}
	return current, s.invalidTransition(current, domain.StatusClicked)
}

// ClaimDispatch leases the request to one sender. The lease is taken with a
// single conditional update so concurrent senders on any instance cannot both
// win it.
func (s *Service) ClaimDispatch(ctx context.Context, id snowflake.ID, maxAttempts int, lease time.Duration) (domain.ReviewRequest, error) {
	if maxAttempts <= 0 {
		maxAttempts = math.MaxInt32
	}
	now := s.clock.Now()
	changed, err := s.repo.ClaimDispatch(ctx, s.db, id, maxAttempts, now, now.Add(-lease))
	if err != nil {
		return domain.ReviewRequest{}, err
	}

	current, err := s.load(ctx, s.db, id)
	if err != nil {
		return domain.ReviewRequest{}, err
	}
	switch {
	case changed:
		return current, nil
	case current.Status != domain.StatusGenerated && current.Status != domain.StatusFailed:
		return current, s.invalidTransition(current, domain.StatusSent)
	case current.SendAttempts >= maxAttempts:
		return current, domain.ErrAttemptsExhausted
	default:
		return current, domain.ErrDispatchInProgress
	}
}

func (s *Service) ReleaseDispatch(ctx context.Context, id snowflake.ID) error {
	return s.repo.ReleaseDispatch(ctx, s.db, id)
}

func (s *Service) ReplaceText(ctx context.Context, req domain.ReplaceTextRequest) (domain.ReviewRequest, error) {
	text := strings.TrimSpace(req.ReviewText)
	if text == "" {
		return domain.ReviewRequest{}, domain.ErrInvalidText
	}

	current, err := s.load(ctx, s.db, req.ID)
	if err != nil {
		return domain.ReviewRequest{}, err
	}

	code := current.ShortCode
	if req.RotateCode {
		// Allocated outside the transaction; if the swap below loses a race the
		// new code simply stays reserved and unused.
		code, err = s.registry.Allocate(ctx)
		if err != nil {
			return domain.ReviewRequest{}, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.ReplaceText(ctx, tx, req.ID, text, code, s.clock.Now())
		if err != nil {
			return err
		}
		if !changed {
			latest, err := s.load(ctx, tx, req.ID)
			if err != nil {
				return err
			}
			return s.invalidTransition(latest, latest.Status)
		}
		if code != current.ShortCode {
			return s.registry.Retire(ctx, tx, current.ShortCode)
		}
		return nil
	})
	if err != nil {
		return domain.ReviewRequest{}, err
	}

	return s.load(ctx, s.db, req.ID)
}

// Delete removes the request and tombstones its code in one transaction.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, tx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		if err := s.registry.Retire(ctx, tx, current.ShortCode); err != nil && !errors.Is(err, shortcodedomain.ErrNotFound) {
			return err
		}
		s.log.Info("review request deleted",
			zap.String("review_request_id", id.String()),
			zap.String("business_id", current.BusinessID.String()),
		)
		return nil
	})
}

func (s *Service) RecordAttempt(ctx context.Context, req domain.AttemptRequest) error {
	outcome := domain.OutcomeFailed
	if req.Delivered {
		outcome = domain.OutcomeDelivered
	}
	attempt := domain.DispatchAttempt{
		ID:              s.genID.Generate(),
		ReviewRequestID: req.ReviewRequestID,
		Backend:         req.Backend,
		Outcome:         outcome,
		ErrorKind:       req.ErrorKind,
		Detail:          datatypes.JSONMap(req.Detail),
		CreatedAt:       s.clock.Now(),
	}
	if attempt.Detail == nil {
		attempt.Detail = datatypes.JSONMap{}
	}
	return s.repo.InsertAttempt(ctx, s.db, &attempt)
}

func (s *Service) ListAttempts(ctx context.Context, id snowflake.ID) ([]domain.DispatchAttempt, error) {
	items, err := s.repo.ListAttempts(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	attempts := make([]domain.DispatchAttempt, 0, len(items))
	for _, item := range items {
		if item != nil {
			attempts = append(attempts, *item)
		}
	}
	return attempts, nil
}

func (s *Service) Stats(ctx context.Context, businessID snowflake.ID) (domain.Stats, error) {
	rows, err := s.repo.CountByStatus(ctx, s.db, businessID)
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{Counts: map[domain.Status]int64{
		domain.StatusGenerated: 0,
		domain.StatusSent:      0,
		domain.StatusFailed:    0,
		domain.StatusClicked:   0,
	}}
	for _, row := range rows {
		stats.Counts[row.Status] = row.Count
		stats.Total += row.Count
	}

	if stats.SentTotal, err = s.repo.CountSent(ctx, s.db, businessID); err != nil {
		return domain.Stats{}, err
	}
	if stats.LastCreatedAt, err = s.repo.LatestTimestamp(ctx, s.db, businessID, "created_at"); err != nil {
		return domain.Stats{}, err
	}
	if stats.LastSentAt, err = s.repo.LatestTimestamp(ctx, s.db, businessID, "sent_at"); err != nil {
		return domain.Stats{}, err
	}
	if stats.LastClickedAt, err = s.repo.LatestTimestamp(ctx, s.db, businessID, "clicked_at"); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// invalidTransition logs at warn, except for clicks: customers may open a link
// before the send is acknowledged and that is not an operator concern.
func (s *Service) invalidTransition(current domain.ReviewRequest, target domain.Status) error {
	logf := s.log.Warn
	if target == domain.StatusClicked {
		logf = s.log.Debug
	}
	logf("invalid review request transition",
		zap.String("review_request_id", current.ID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
	)
	return domain.ErrInvalidTransition
}

const maxReasonLength = 500

func truncateReason(reason string) string {
	runes := []rune(strings.TrimSpace(reason))
	if len(runes) <= maxReasonLength {
		return string(runes)
	}
	return string(runes[:maxReasonLength])
}

func derefAll(items []*domain.ReviewRequest) []domain.ReviewRequest {
	out := make([]domain.ReviewRequest, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}
