package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/observability/metrics"
	"github.com/smallbiznis/reviewboost/internal/outreach/domain"
	"github.com/smallbiznis/reviewboost/internal/providers/dispatch"
	"github.com/smallbiznis/reviewboost/internal/providers/places"
	"github.com/smallbiznis/reviewboost/internal/providers/textgen"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	shortcodedomain "github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	maxBatchSize        = 100
	defaultConcurrency  = 4
	defaultMaxAttempts  = 3
	defaultClaimTTL     = 2 * time.Minute
	dashboardRecentSize = 100
	testMessageBody     = "ReviewBoost test message: your dispatch backend is working."
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Businesses businessdomain.Service
	Requests   reviewdomain.Service
	Registry   shortcodedomain.Registry
	Places     places.Resolver
	TextGen    textgen.Generator
	Dispatcher dispatch.Provider
	Carriers   *config.CarrierConfigHolder
	Lock       domain.DispatchLock `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	businesses businessdomain.Service
	requests   reviewdomain.Service
	registry   shortcodedomain.Registry
	places     places.Resolver
	textgen    textgen.Generator
	dispatcher dispatch.Provider
	carriers   *config.CarrierConfigHolder
	lock       domain.DispatchLock
	metrics    *metrics.Metrics

	baseURL     string
	concurrency int
	maxAttempts int
	claimTTL    time.Duration
}

func New(p Params) domain.Service {
	concurrency := p.Config.Outreach.GenerateConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	maxAttempts := p.Config.Outreach.MaxSendAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	claimTTL := p.Config.Outreach.DispatchClaimTTL
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &Service{
		log:         p.Log.Named("outreach.service"),
		businesses:  p.Businesses,
		requests:    p.Requests,
		registry:    p.Registry,
		places:      p.Places,
		textgen:     p.TextGen,
		dispatcher:  p.Dispatcher,
		carriers:    p.Carriers,
		lock:        p.Lock,
		metrics:     p.Metrics,
		baseURL:     strings.TrimRight(p.Config.BaseURL, "/"),
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		claimTTL:    claimTTL,
	}
}

// link prefers the configured public origin over the one seen on the request.
func (s *Service) link(requestBase, code string) string {
	base := s.baseURL
	if base == "" {
		base = requestBase
	}
	return domain.Link(base, code)
}

func (s *Service) resolveBusiness(ctx context.Context, ref, query string) (businessdomain.Business, error) {
	if ref = strings.TrimSpace(ref); ref != "" {
		return s.businesses.Find(ctx, ref)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return businessdomain.Business{}, domain.ErrBusinessRequired
	}
	place, err := s.places.Resolve(ctx, query)
	if err != nil {
		return businessdomain.Business{}, err
	}
	return s.businesses.Upsert(ctx, businessdomain.UpsertRequest{
		PlaceID: place.PlaceID,
		Name:    place.Name,
		Address: place.Address,
	})
}

func (s *Service) ListBusinesses(ctx context.Context) ([]businessdomain.Business, error) {
	return s.businesses.List(ctx)
}

func (s *Service) ResolvePlace(ctx context.Context, input string) (places.Place, error) {
	return s.places.Resolve(ctx, input)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if err := s.requests.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("review request deleted", zap.String("review_request_id", id.String()))
	return nil
}

func (s *Service) Carriers() []config.Carrier {
	return s.carriers.Get().Carriers
}

func (s *Service) Diagnose(ctx context.Context) dispatch.Report {
	return s.dispatcher.Diagnose(ctx)
}

// SendTest performs one real send with a fixed body. No review request is
// created or touched.
func (s *Service) SendTest(ctx context.Context, req domain.SendTestRequest) (dispatch.Result, error) {
	contact, err := dispatch.ParseContact(req.Contact, req.Carrier)
	if err != nil {
		return dispatch.Result{}, err
	}
	result, err := s.dispatcher.Send(ctx, contact, testMessageBody)
	if err != nil {
		s.metrics.RecordDispatch(ctx, s.dispatcher.Name(), dispatch.Kind(err))
		s.log.Warn("test send failed",
			zap.String("backend", s.dispatcher.Name()),
			zap.String("contact", contact.Masked()),
			zap.String("error_kind", dispatch.Kind(err)),
		)
		return dispatch.Result{}, err
	}
	s.metrics.RecordDispatch(ctx, result.Backend, reviewdomain.OutcomeDelivered)
	return result, nil
}

func (s *Service) Dashboard(ctx context.Context, businessRef string) (domain.Dashboard, error) {
	business, err := s.businesses.Find(ctx, businessRef)
	if err != nil {
		return domain.Dashboard{}, err
	}
	stats, err := s.requests.Stats(ctx, business.ID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	recent, err := s.requests.Recent(ctx, business.ID, dashboardRecentSize)
	if err != nil {
		return domain.Dashboard{}, err
	}
	return domain.Dashboard{
		Business:         business,
		Stats:            stats,
		ClickThroughRate: clickThroughRate(stats),
		Recent:           recent,
	}, nil
}

func clickThroughRate(stats reviewdomain.Stats) float64 {
	if stats.SentTotal == 0 {
		return 0
	}
	return float64(stats.Counts[reviewdomain.StatusClicked]) / float64(stats.SentTotal)
}

// Regenerate replaces the text of a request that has not been delivered and
// optionally moves it to a fresh short code.
func (s *Service) Regenerate(ctx context.Context, id snowflake.ID, req domain.RegenerateRequest) (domain.RegenerateResult, error) {
	current, err := s.requests.Get(ctx, id)
	if err != nil {
		return domain.RegenerateResult{}, err
	}
	if current.Status != reviewdomain.StatusGenerated && current.Status != reviewdomain.StatusFailed {
		return domain.RegenerateResult{}, fmt.Errorf("%w: request is %s", reviewdomain.ErrInvalidTransition, current.Status)
	}
	business, err := s.businesses.Get(ctx, current.BusinessID)
	if err != nil {
		return domain.RegenerateResult{}, err
	}

	text, err := s.textgen.GenerateReview(ctx, textgen.PlaceMetadata{Name: business.Name, Address: business.Address}, textgen.ParseTone(req.Tone))
	if err != nil {
		s.metrics.RecordGenerateFailure(ctx, domain.KindGeneration)
		return domain.RegenerateResult{}, err
	}

	updated, err := s.requests.ReplaceText(ctx, reviewdomain.ReplaceTextRequest{
		ID:         id,
		ReviewText: text,
		RotateCode: req.NewCode,
	})
	if err != nil {
		if errors.Is(err, shortcodedomain.ErrCodeSpaceExhausted) {
			s.log.Error("short code space exhausted during regeneration", zap.String("review_request_id", id.String()))
		}
		return domain.RegenerateResult{}, err
	}
	return domain.RegenerateResult{
		ReviewRequest: updated,
		Link:          s.link(req.BaseURL, updated.ShortCode),
	}, nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func newBatchID() string {
	return ulid.Make().String()
}
