package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	businessrepo "github.com/smallbiznis/reviewboost/internal/business/repository"
	businessservice "github.com/smallbiznis/reviewboost/internal/business/service"
	"github.com/smallbiznis/reviewboost/internal/clock"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/migration"
	"github.com/smallbiznis/reviewboost/internal/redirect/domain"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	reviewrepo "github.com/smallbiznis/reviewboost/internal/reviewrequest/repository"
	reviewservice "github.com/smallbiznis/reviewboost/internal/reviewrequest/service"
	shortcodedomain "github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	shortcoderepo "github.com/smallbiznis/reviewboost/internal/shortcode/repository"
	shortcodeservice "github.com/smallbiznis/reviewboost/internal/shortcode/service"
	dbpkg "github.com/smallbiznis/reviewboost/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc      domain.Service
	requests reviewdomain.Service
	registry shortcodedomain.Registry
	clock    *clock.FakeClock
	business businessdomain.Business
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	registry := shortcodeservice.New(shortcodeservice.Params{
		DB: db, Log: zap.NewNop(), Config: config.Config{}, Clock: clk, Repo: shortcoderepo.Provide(),
	})
	requests := reviewservice.New(reviewservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: reviewrepo.Provide(), Registry: registry,
	})
	businesses := businessservice.New(businessservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: businessrepo.Provide(),
	})
	business, err := businesses.Upsert(context.Background(), businessdomain.UpsertRequest{PlaceID: "ChIJjoes", Name: "Joes Pizza"})
	require.NoError(t, err)

	return &fixture{
		svc:      New(Params{Log: zap.NewNop(), Requests: requests, Businesses: businesses}),
		requests: requests,
		registry: registry,
		clock:    clk,
		business: business,
	}
}

func (f *fixture) create(t *testing.T) reviewdomain.ReviewRequest {
	t.Helper()
	code, err := f.registry.Allocate(context.Background())
	require.NoError(t, err)
	item, err := f.requests.Create(context.Background(), reviewdomain.CreateRequest{
		BusinessID:      f.business.ID,
		ShortCode:       code,
		CustomerContact: "+15551234567",
		ReviewText:      "Great slice, friendly staff.",
	})
	require.NoError(t, err)
	return item
}

func TestResolveAndMarkSentRequest(t *testing.T) {
	f := newFixture(t)
	item := f.create(t)
	_, err := f.requests.MarkSent(context.Background(), item.ID)
	require.NoError(t, err)

	payload, err := f.svc.ResolveAndMark(context.Background(), " "+item.ShortCode+" ")
	require.NoError(t, err)
	assert.Equal(t, domain.Payload{
		BusinessName: "Joes Pizza",
		ReviewText:   "Great slice, friendly staff.",
		TargetURL:    "https://search.google.com/local/writereview?placeid=ChIJjoes",
	}, payload)

	stored, err := f.requests.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, reviewdomain.StatusClicked, stored.Status)
	require.NotNil(t, stored.ClickedAt)
	firstClick := *stored.ClickedAt

	f.clock.Advance(time.Hour)
	_, err = f.svc.ResolveAndMark(context.Background(), item.ShortCode)
	require.NoError(t, err)
	stored, err = f.requests.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.True(t, firstClick.Equal(*stored.ClickedAt))
}

func TestResolveAndMarkUnsentStillReturnsPayload(t *testing.T) {
	f := newFixture(t)
	item := f.create(t)

	payload, err := f.svc.ResolveAndMark(context.Background(), item.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, item.ReviewText, payload.ReviewText)

	stored, err := f.requests.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, reviewdomain.StatusGenerated, stored.Status)
	assert.Nil(t, stored.ClickedAt)
}

func TestResolveAndMarkNotFound(t *testing.T) {
	f := newFixture(t)
	deleted := f.create(t)
	require.NoError(t, f.requests.Delete(context.Background(), deleted.ID))

	for _, code := range []string{deleted.ShortCode, "zzzzzzz", "bad!code", "", "0O1lI00"} {
		_, err := f.svc.ResolveAndMark(context.Background(), code)
		assert.ErrorIs(t, err, domain.ErrNotFound, code)
	}
}

func TestResolveAndMarkConcurrentClicks(t *testing.T) {
	f := newFixture(t)
	item := f.create(t)
	_, err := f.requests.MarkSent(context.Background(), item.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ResolveAndMark(context.Background(), item.ShortCode)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	stored, err := f.requests.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, reviewdomain.StatusClicked, stored.Status)
}
