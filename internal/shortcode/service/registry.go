package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/smallbiznis/reviewboost/internal/clock"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/observability/metrics"
	"github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	dbpkg "github.com/smallbiznis/reviewboost/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
	Source  domain.Source    `optional:"true"`
}

type Registry struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	metrics     *metrics.Metrics
	source      domain.Source
	length      int
	maxAttempts int
}

func New(p Params) domain.Registry {
	length := p.Config.ShortCode.Length
	if length < domain.MinLength || length > domain.MaxLength {
		length = domain.DefaultLength
	}
	maxAttempts := p.Config.ShortCode.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	source := p.Source
	if source == nil {
		source = RandomCode
	}

	return &Registry{
		db:          p.DB,
		log:         p.Log.Named("shortcode.registry"),
		clock:       p.Clock,
		repo:        p.Repo,
		metrics:     p.Metrics,
		source:      source,
		length:      length,
		maxAttempts: maxAttempts,
	}
}

// Allocate reserves a fresh code. The primary key on short_codes is the only
// uniqueness guard; a duplicate insert is a collision and triggers a redraw.
func (r *Registry) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code, err := r.source(r.length)
		if err != nil {
			return "", fmt.Errorf("draw short code: %w", err)
		}

		err = r.repo.Insert(ctx, r.db, code, r.clock.Now())
		if err == nil {
			return code, nil
		}
		if !dbpkg.IsDuplicateKeyErr(err) {
			return "", err
		}

		r.metrics.RecordCodeCollision(ctx)
		r.log.Warn("short code collision", zap.Int("attempt", attempt))
	}

	r.log.Error("short code space exhausted",
		zap.Int("length", r.length),
		zap.Int("attempts", r.maxAttempts),
	)
	return "", domain.ErrCodeSpaceExhausted
}

func (r *Registry) Retire(ctx context.Context, tx *gorm.DB, code string) error {
	if tx == nil {
		tx = r.db
	}
	retired, err := r.repo.Retire(ctx, tx, code, r.clock.Now())
	if err != nil {
		return err
	}
	if !retired {
		existing, err := r.repo.Find(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}
	}
	return nil
}

var alphabetSize = big.NewInt(int64(len(domain.Alphabet)))

// RandomCode draws length characters uniformly from the code alphabet.
func RandomCode(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = domain.Alphabet[n.Int64()]
	}
	return string(buf), nil
}
