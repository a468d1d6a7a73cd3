package service

import (
	"context"
	"errors"
	"sync/atomic"

	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/outreach/domain"
	"github.com/smallbiznis/reviewboost/internal/providers/dispatch"
	"github.com/smallbiznis/reviewboost/internal/providers/textgen"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	shortcodedomain "github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Generate creates one review request per contact. Items commit on their own
// and failures are reported per item; the batch itself only fails when the
// business cannot be resolved.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (domain.BatchResult, error) {
	if len(req.Contacts) == 0 {
		return domain.BatchResult{}, domain.ErrNoContacts
	}
	if len(req.Contacts) > maxBatchSize {
		return domain.BatchResult{}, domain.ErrTooManyContacts
	}

	business, err := s.resolveBusiness(ctx, req.BusinessRef, req.PlaceQuery)
	if err != nil {
		return domain.BatchResult{}, err
	}

	batch := domain.BatchResult{
		BatchID:  newBatchID(),
		Business: business,
		Items:    make([]domain.GenerateItem, len(req.Contacts)),
	}
	log := s.log.With(zap.String("batch_id", batch.BatchID), zap.String("business_id", business.ID.String()))
	tone := textgen.ParseTone(req.Tone)

	// Items never fail the group, so siblings are not canceled.
	var (
		exhausted atomic.Bool
		g         errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for i, input := range req.Contacts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				batch.Items[i] = domain.GenerateItem{
					Contact:   input.Contact,
					Status:    domain.ItemError,
					ErrorKind: domain.KindCanceled,
					Error:     err.Error(),
				}
			} else {
				batch.Items[i] = s.generateOne(ctx, log, business, input, tone, req.BaseURL, &exhausted)
			}
			batch.Items[i].Index = i
			return nil
		})
	}
	_ = g.Wait()

	generated := 0
	for _, item := range batch.Items {
		if item.Status == domain.ItemGenerated {
			generated++
		}
	}
	log.Info("batch generated", zap.Int("requested", len(req.Contacts)), zap.Int("generated", generated))
	return batch, nil
}

func (s *Service) generateOne(
	ctx context.Context,
	log *zap.Logger,
	business businessdomain.Business,
	input domain.ContactInput,
	tone textgen.Tone,
	baseURL string,
	exhausted *atomic.Bool,
) domain.GenerateItem {
	item := domain.GenerateItem{Contact: input.Contact}
	fail := func(kind string, err error) domain.GenerateItem {
		item.Status = domain.ItemError
		item.ErrorKind = kind
		item.Error = errorMessage(err)
		s.metrics.RecordGenerateFailure(ctx, kind)
		return item
	}

	if exhausted.Load() {
		return fail(domain.KindCodeSpaceExhausted, shortcodedomain.ErrCodeSpaceExhausted)
	}

	contact, err := dispatch.ParseContact(input.Contact, input.Carrier)
	if err != nil {
		return fail(domain.KindInvalidContact, err)
	}
	if contact.Carrier != "" {
		if _, ok := s.carriers.Get().Lookup(contact.Carrier); !ok {
			return fail(domain.KindInvalidContact, errors.New("unknown carrier"))
		}
	}

	text, err := s.textgen.GenerateReview(ctx, textgen.PlaceMetadata{Name: business.Name, Address: business.Address}, tone)
	if err != nil {
		log.Warn("review text generation failed", zap.String("contact", contact.Masked()), zap.Error(err))
		return fail(domain.KindGeneration, err)
	}

	if exhausted.Load() {
		return fail(domain.KindCodeSpaceExhausted, shortcodedomain.ErrCodeSpaceExhausted)
	}
	code, err := s.registry.Allocate(ctx)
	if err != nil {
		if errors.Is(err, shortcodedomain.ErrCodeSpaceExhausted) {
			if !exhausted.Swap(true) {
				log.Error("short code space exhausted, remaining batch items skipped")
			}
			return fail(domain.KindCodeSpaceExhausted, err)
		}
		log.Error("short code allocation failed", zap.Error(err))
		return fail(domain.KindInternal, err)
	}

	stored := contact.Phone
	if stored == "" {
		stored = contact.Email
	}
	created, err := s.requests.Create(ctx, reviewdomain.CreateRequest{
		BusinessID:      business.ID,
		ShortCode:       code,
		CustomerContact: stored,
		Carrier:         contact.Carrier,
		ReviewText:      text,
	})
	if err != nil {
		log.Error("review request persist failed", zap.Error(err))
		return fail(domain.KindInternal, err)
	}
	s.metrics.RecordGenerated(ctx, contact.Carrier)

	link := s.link(baseURL, created.ShortCode)
	item.Status = domain.ItemGenerated
	item.ID = created.ID
	item.ShortCode = created.ShortCode
	item.Link = link
	item.ReviewText = created.ReviewText
	item.Preview = dispatch.ComposeBody(dispatch.BodyInput{
		BusinessName: business.Name,
		ReviewText:   created.ReviewText,
		Link:         link,
	}, s.dispatcher.MaxBodyLength())
	return item
}
