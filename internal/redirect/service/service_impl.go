package service

import (
	"context"
	"errors"

	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/observability/metrics"
	"github.com/smallbiznis/reviewboost/internal/redirect/domain"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Requests   reviewdomain.Service
	Businesses businessdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	requests   reviewdomain.Service
	businesses businessdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("redirect.service"),
		requests:   p.Requests,
		businesses: p.Businesses,
		metrics:    p.Metrics,
	}
}

// ResolveAndMark never tells callers why a code failed: unknown, malformed,
// deleted and broken lookups all surface as ErrNotFound.
func (s *Service) ResolveAndMark(ctx context.Context, code string) (domain.Payload, error) {
	req, err := s.requests.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, reviewdomain.ErrNotFound) {
			s.log.Warn("short code lookup failed", zap.Error(err))
		}
		return domain.Payload{}, domain.ErrNotFound
	}

	business, err := s.businesses.Get(ctx, req.BusinessID)
	if err != nil {
		s.log.Warn("business lookup failed for short code",
			zap.String("review_request_id", req.ID.String()),
			zap.Error(err),
		)
		return domain.Payload{}, domain.ErrNotFound
	}

	firstClick := req.Status != reviewdomain.StatusClicked
	if _, err := s.requests.MarkClicked(ctx, req.ID); err != nil {
		switch {
		case errors.Is(err, reviewdomain.ErrInvalidTransition):
			// Links can be opened before the send is acknowledged.
			s.log.Debug("click on unsent review request",
				zap.String("review_request_id", req.ID.String()),
				zap.String("status", string(req.Status)),
			)
			firstClick = false
		default:
			s.log.Warn("mark clicked failed", zap.String("review_request_id", req.ID.String()), zap.Error(err))
			return domain.Payload{}, domain.ErrNotFound
		}
	}
	s.metrics.RecordClick(ctx, firstClick)

	return domain.Payload{
		BusinessName: business.Name,
		ReviewText:   req.ReviewText,
		TargetURL:    business.ReviewURL(),
	}, nil
}
