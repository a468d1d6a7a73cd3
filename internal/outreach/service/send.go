package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/outreach/domain"
	"github.com/smallbiznis/reviewboost/internal/providers/dispatch"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	"go.uber.org/zap"
)

// Send dispatches each item in order. The dispatcher never retries; a failed
// item can be sent again until the attempt limit is reached. Once the backend
// reports a configuration error the remaining items are left untouched.
//
// An item is only handed to the backend after ClaimDispatch wins the request
// in the database, so overlapping sends of one request deliver it once.
func (s *Service) Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	if len(req.Items) == 0 {
		return domain.SendResult{}, domain.ErrNoItems
	}
	if len(req.Items) > maxBatchSize {
		return domain.SendResult{}, domain.ErrTooManyItems
	}

	run := &sendRun{
		svc:        s,
		req:        req,
		businesses: make(map[snowflake.ID]businessdomain.Business),
	}
	result := domain.SendResult{
		Backend: s.dispatcher.Name(),
		Items:   make([]domain.SendItemResult, len(req.Items)),
	}
	for i, item := range req.Items {
		result.Items[i] = run.sendOne(ctx, item)
	}
	return result, nil
}

type sendRun struct {
	svc         *Service
	req         domain.SendRequest
	businesses  map[snowflake.ID]businessdomain.Business
	configError error
}

func (r *sendRun) business(ctx context.Context, id snowflake.ID) (businessdomain.Business, error) {
	if b, ok := r.businesses[id]; ok {
		return b, nil
	}
	b, err := r.svc.businesses.Get(ctx, id)
	if err != nil {
		return businessdomain.Business{}, err
	}
	r.businesses[id] = b
	return b, nil
}

func (r *sendRun) sendOne(ctx context.Context, item domain.SendItem) domain.SendItemResult {
	s := r.svc
	out := domain.SendItemResult{ID: item.ID}
	skip := func(kind string, err error) domain.SendItemResult {
		out.Status = domain.ItemSkipped
		out.ErrorKind = kind
		out.Error = errorMessage(err)
		return out
	}

	if r.configError != nil {
		return skip(domain.KindConfiguration, r.configError)
	}

	current, err := s.requests.Get(ctx, item.ID)
	if err != nil {
		if errors.Is(err, reviewdomain.ErrNotFound) {
			return skip(domain.KindNotFound, err)
		}
		return skip(domain.KindInternal, err)
	}
	out.RequestStatus = current.Status

	switch current.Status {
	case reviewdomain.StatusClicked:
		return skip(domain.KindAlreadyClicked, nil)
	case reviewdomain.StatusSent:
		return skip(domain.KindAlreadySent, nil)
	}
	if current.SendAttempts >= s.maxAttempts {
		return skip(domain.KindRetryLimit, fmt.Errorf("%d of %d attempts used", current.SendAttempts, s.maxAttempts))
	}

	if s.lock != nil {
		token, ok, err := s.lock.TryLockRequest(ctx, item.ID.String())
		if err != nil {
			s.log.Warn("dispatch lock unavailable", zap.String("review_request_id", item.ID.String()), zap.Error(err))
			return skip(domain.KindLockUnavailable, err)
		}
		if !ok {
			return skip(domain.KindInProgress, nil)
		}
		defer func() {
			if err := s.lock.ReleaseRequest(context.WithoutCancel(ctx), item.ID.String(), token); err != nil {
				s.log.Warn("dispatch lock release failed", zap.String("review_request_id", item.ID.String()), zap.Error(err))
			}
		}()
	}

	claimed, err := s.requests.ClaimDispatch(ctx, item.ID, s.maxAttempts, s.claimTTL)
	if err != nil {
		out.RequestStatus = claimed.Status
		return skip(claimRejection(claimed, err), err)
	}
	current = claimed

	// abandon gives the claim back when the request never reached a backend.
	abandon := func(kind string, cause error) domain.SendItemResult {
		if err := s.requests.ReleaseDispatch(context.WithoutCancel(ctx), current.ID); err != nil {
			s.log.Warn("dispatch claim release failed", zap.String("review_request_id", current.ID.String()), zap.Error(err))
		}
		return skip(kind, cause)
	}

	if edited := strings.TrimSpace(item.ReviewText); edited != "" && edited != current.ReviewText {
		updated, err := s.requests.ReplaceText(ctx, reviewdomain.ReplaceTextRequest{ID: item.ID, ReviewText: edited})
		if err != nil {
			if errors.Is(err, reviewdomain.ErrInvalidTransition) {
				return abandon(domain.KindAlreadySent, err)
			}
			return abandon(domain.KindInvalidText, err)
		}
		current = updated
	}

	business, err := r.business(ctx, current.BusinessID)
	if err != nil {
		return abandon(domain.KindInternal, err)
	}

	carrier := current.Carrier
	if carrier == "" {
		carrier = r.req.Carrier
	}
	backend := s.dispatcher.Name()
	contact, err := dispatch.ParseContact(current.CustomerContact, carrier)
	if err != nil {
		return r.recordFailure(ctx, out, current, backend, err)
	}

	body := dispatch.ComposeBody(dispatch.BodyInput{
		BusinessName: business.Name,
		ReviewText:   current.ReviewText,
		Link:         s.link(r.req.BaseURL, current.ShortCode),
		Override:     item.Body,
	}, s.dispatcher.MaxBodyLength())

	sent, err := s.dispatcher.Send(ctx, contact, body)
	if err != nil {
		if dispatch.IsConfiguration(err) {
			r.configError = err
			s.log.Error("dispatch backend misconfigured, remaining items skipped",
				zap.String("backend", backend),
				zap.Error(err),
			)
		}
		return r.recordFailure(ctx, out, current, backend, err)
	}

	s.metrics.RecordDispatch(ctx, backend, reviewdomain.OutcomeDelivered)
	r.recordAttempt(ctx, reviewdomain.AttemptRequest{
		ReviewRequestID: current.ID,
		Backend:         backend,
		Delivered:       true,
		Detail:          map[string]interface{}{"message_id": sent.MessageID},
	})

	out.Status = domain.ItemSent
	marked, err := s.requests.MarkSent(ctx, current.ID)
	if err != nil {
		// The message is out; the request changed underneath the dispatch.
		s.log.Warn("mark sent failed after delivery",
			zap.String("review_request_id", current.ID.String()),
			zap.Error(err),
		)
		out.ErrorKind = domain.KindStateConflict
		out.Error = err.Error()
	}
	out.RequestStatus = marked.Status
	out.Backend = sent.Backend
	out.MessageID = sent.MessageID
	return out
}

func claimRejection(current reviewdomain.ReviewRequest, err error) string {
	switch {
	case errors.Is(err, reviewdomain.ErrNotFound):
		return domain.KindNotFound
	case errors.Is(err, reviewdomain.ErrAttemptsExhausted):
		return domain.KindRetryLimit
	case errors.Is(err, reviewdomain.ErrDispatchInProgress):
		return domain.KindInProgress
	case errors.Is(err, reviewdomain.ErrInvalidTransition):
		if current.Status == reviewdomain.StatusClicked {
			return domain.KindAlreadyClicked
		}
		return domain.KindAlreadySent
	default:
		return domain.KindInternal
	}
}

func (r *sendRun) recordFailure(ctx context.Context, out domain.SendItemResult, current reviewdomain.ReviewRequest, backend string, cause error) domain.SendItemResult {
	s := r.svc
	kind := dispatch.Kind(cause)
	s.metrics.RecordDispatch(ctx, backend, kind)
	r.recordAttempt(ctx, reviewdomain.AttemptRequest{
		ReviewRequestID: current.ID,
		Backend:         backend,
		ErrorKind:       kind,
		Detail:          map[string]interface{}{"error": cause.Error()},
	})

	failed, err := s.requests.MarkFailed(ctx, current.ID, cause.Error())
	if err != nil {
		s.log.Warn("mark failed rejected",
			zap.String("review_request_id", current.ID.String()),
			zap.Error(err),
		)
	} else {
		out.RequestStatus = failed.Status
	}
	s.log.Info("dispatch failed",
		zap.String("review_request_id", current.ID.String()),
		zap.String("backend", backend),
		zap.String("error_kind", kind),
	)

	out.Status = domain.ItemFailed
	out.Backend = backend
	out.ErrorKind = kind
	out.Error = cause.Error()
	return out
}

func (r *sendRun) recordAttempt(ctx context.Context, req reviewdomain.AttemptRequest) {
	if err := r.svc.requests.RecordAttempt(ctx, req); err != nil {
		r.svc.log.Warn("dispatch attempt not recorded",
			zap.String("review_request_id", req.ReviewRequestID.String()),
			zap.Error(err),
		)
	}
}
