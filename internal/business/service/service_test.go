package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/business/repository"
	"github.com/smallbiznis/reviewboost/internal/clock"
	dbpkg "github.com/smallbiznis/reviewboost/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Business{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestUpsertCreatesOncePerPlace(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, domain.UpsertRequest{PlaceID: "ChIJabc", Name: "Joes Pizza", Address: "1 Main St"})
	require.NoError(t, err)
	assert.Equal(t, "joes-pizza", first.Slug)
	assert.Equal(t, "https://search.google.com/local/writereview?placeid=ChIJabc", first.ReviewURL())

	clk.Advance(time.Hour)
	second, err := svc.Upsert(ctx, domain.UpsertRequest{PlaceID: "ChIJabc", Name: "Joes Pizza and Pasta"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Joes Pizza and Pasta", second.Name)
	assert.Equal(t, "1 Main St", second.Address)
	assert.Equal(t, "joes-pizza", second.Slug)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertDisambiguatesSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Upsert(ctx, domain.UpsertRequest{PlaceID: "ChIJone", Name: "Corner Cafe"})
	require.NoError(t, err)
	b, err := svc.Upsert(ctx, domain.UpsertRequest{PlaceID: "ChIJtwo", Name: "Corner Cafe"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Slug, b.Slug)
	assert.Contains(t, b.Slug, "corner-cafe-")
}

func TestFindByIDOrSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, domain.UpsertRequest{PlaceID: "ChIJxyz", Name: "Blue Door Salon"})
	require.NoError(t, err)

	byID, err := svc.Find(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	bySlug, err := svc.Find(ctx, "Blue-Door-Salon")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	_, err = svc.Find(ctx, "nowhere")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Find(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.UpsertRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlaceID)

	_, err = svc.Upsert(ctx, domain.UpsertRequest{PlaceID: "ChIJ"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}
