package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/clock"
	dbpkg "github.com/smallbiznis/reviewboost/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("business.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (domain.Business, error) {
	placeID := strings.TrimSpace(req.PlaceID)
	if placeID == "" {
		return domain.Business{}, domain.ErrInvalidPlaceID
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Business{}, domain.ErrInvalidName
	}
	address := strings.TrimSpace(req.Address)

	existing, err := s.repo.FindByPlaceID(ctx, s.db, placeID)
	if err != nil {
		return domain.Business{}, err
	}
	if existing != nil {
		return s.refresh(ctx, *existing, name, address)
	}

	now := s.clock.Now()
	business := domain.Business{
		ID:            s.genID.Generate(),
		Name:          name,
		GooglePlaceID: placeID,
		Address:       address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	candidates := []string{baseSlug(name), baseSlug(name) + "-" + business.ID.Base36()}
	for _, candidate := range candidates {
		business.Slug = candidate
		err = s.repo.Insert(ctx, s.db, &business)
		if err == nil {
			s.log.Info("business registered",
				zap.String("business_id", business.ID.String()),
				zap.String("slug", business.Slug),
			)
			return business, nil
		}
		if !dbpkg.IsDuplicateKeyErr(err) {
			return domain.Business{}, err
		}

		// Either another writer registered the same place first, or the slug
		// is taken by a different place.
		winner, findErr := s.repo.FindByPlaceID(ctx, s.db, placeID)
		if findErr != nil {
			return domain.Business{}, findErr
		}
		if winner != nil {
			return *winner, nil
		}
	}

	return domain.Business{}, err
}

func (s *Service) refresh(ctx context.Context, business domain.Business, name, address string) (domain.Business, error) {
	if business.Name == name && (address == "" || business.Address == address) {
		return business, nil
	}

	business.Name = name
	if address != "" {
		business.Address = address
	}
	business.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateMetadata(ctx, s.db, &business); err != nil {
		return domain.Business{}, err
	}
	return business, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Business, error) {
	if id == 0 {
		return domain.Business{}, domain.ErrInvalidReference
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Business{}, err
	}
	if item == nil {
		return domain.Business{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Find(ctx context.Context, ref string) (domain.Business, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Business{}, domain.ErrInvalidReference
	}

	if id, err := snowflake.ParseString(ref); err == nil && id != 0 {
		item, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return domain.Business{}, err
		}
		if item != nil {
			return *item, nil
		}
	}

	item, err := s.repo.FindBySlug(ctx, s.db, strings.ToLower(ref))
	if err != nil {
		return domain.Business{}, err
	}
	if item == nil {
		return domain.Business{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Business, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	businesses := make([]domain.Business, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		businesses = append(businesses, *item)
	}
	return businesses, nil
}

func baseSlug(name string) string {
	value := slug.Make(name)
	if value == "" {
		return "business"
	}
	return value
}
