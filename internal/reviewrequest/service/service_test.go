package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/internal/clock"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/migration"
	"github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	"github.com/smallbiznis/reviewboost/internal/reviewrequest/repository"
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
	registry shortcodedomain.Registry
	clock    *clock.FakeClock
	business snowflake.ID
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
		DB:     db,
		Log:    zap.NewNop(),
		Config: config.Config{},
		Clock:  clk,
		Repo:   shortcoderepo.Provide(),
	})

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		Registry: registry,
	})

	return &fixture{svc: svc, registry: registry, clock: clk, business: node.Generate()}
}

func (f *fixture) create(t *testing.T) domain.ReviewRequest {
	t.Helper()
	code, err := f.registry.Allocate(context.Background())
	require.NoError(t, err)

	item, err := f.svc.Create(context.Background(), domain.CreateRequest{
		BusinessID:      f.business,
		ShortCode:       code,
		CustomerContact: "+15551234567",
		ReviewText:      "Great slice, friendly staff.",
	})
	require.NoError(t, err)
	return item
}

func TestCreateStartsGenerated(t *testing.T) {
	f := newFixture(t)
	item := f.create(t)

	assert.Equal(t, domain.StatusGenerated, item.Status)
	assert.Nil(t, item.SentAt)
	assert.Nil(t, item.ClickedAt)

	loaded, err := f.svc.GetByCode(context.Background(), "  "+item.ShortCode+" ")
	require.NoError(t, err)
	assert.Equal(t, item.ID, loaded.ID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateRequest{BusinessID: f.business, ShortCode: "ab3k9qz", ReviewText: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidContact)

	_, err = f.svc.Create(ctx, domain.CreateRequest{BusinessID: f.business, ShortCode: "ab3k9qz", CustomerContact: "a@b.co"})
	assert.ErrorIs(t, err, domain.ErrInvalidText)

	_, err = f.svc.Create(ctx, domain.CreateRequest{BusinessID: f.business, ShortCode: "O0", CustomerContact: "a@b.co", ReviewText: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidShortCode)
}

func TestHappyPathTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	f.clock.Advance(time.Minute)
	sent, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.True(t, sent.SentAt.Equal(f.clock.Now()))
	assert.Equal(t, 1, sent.SendAttempts)

	f.clock.Advance(time.Minute)
	clicked, err := f.svc.MarkClicked(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClicked, clicked.Status)
	require.NotNil(t, clicked.ClickedAt)
	assert.True(t, clicked.ClickedAt.After(*clicked.SentAt))
}

func TestMarkClickedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	_, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)

	first, err := f.svc.MarkClicked(ctx, item.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.MarkClicked(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusClicked, second.Status)
	assert.True(t, first.ClickedAt.Equal(*second.ClickedAt))
}

func TestConcurrentClicksKeepFirstTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)
	_, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)

	const workers = 8
	results := make([]domain.ReviewRequest, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.clock.Advance(time.Second)
			results[i], errs[i] = f.svc.MarkClicked(ctx, item.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].ClickedAt)
		assert.True(t, results[0].ClickedAt.Equal(*results[i].ClickedAt))
	}
}

func TestMarkSentOnClickedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	_, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	clicked, err := f.svc.MarkClicked(ctx, item.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	again, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClicked, again.Status)
	assert.Equal(t, clicked.SendAttempts, again.SendAttempts)
	assert.True(t, clicked.SentAt.Equal(*again.SentAt))
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	_, err := f.svc.MarkClicked(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkSent(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.MarkClicked(ctx, item.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkFailed(ctx, item.ID, "late failure")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.MarkSent(ctx, snowflake.ID(42))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFailedCanBeRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	failed, err := f.svc.MarkFailed(ctx, item.ID, "backend_unavailable: 503")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Nil(t, failed.SentAt)
	assert.Equal(t, "backend_unavailable: 503", failed.LastError)

	failed, err = f.svc.MarkFailed(ctx, item.ID, "backend_unavailable: timeout")
	require.NoError(t, err)
	assert.Equal(t, 2, failed.SendAttempts)

	sent, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	assert.Equal(t, 3, sent.SendAttempts)
	assert.Empty(t, sent.LastError)
}

func TestClaimDispatchLeasesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	claimed, err := f.svc.ClaimDispatch(ctx, item.ID, 3, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed.DispatchClaimedAt)
	assert.Zero(t, claimed.SendAttempts)

	_, err = f.svc.ClaimDispatch(ctx, item.ID, 3, time.Minute)
	assert.ErrorIs(t, err, domain.ErrDispatchInProgress)

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.ClaimDispatch(ctx, item.ID, 3, time.Minute)
	require.NoError(t, err)

	failed, err := f.svc.MarkFailed(ctx, item.ID, "backend_unavailable: timeout")
	require.NoError(t, err)
	assert.Nil(t, failed.DispatchClaimedAt)

	_, err = f.svc.ClaimDispatch(ctx, item.ID, 1, time.Minute)
	assert.ErrorIs(t, err, domain.ErrAttemptsExhausted)

	_, err = f.svc.ClaimDispatch(ctx, item.ID, 3, time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.svc.ReleaseDispatch(ctx, item.ID))
	_, err = f.svc.ClaimDispatch(ctx, item.ID, 3, time.Minute)
	require.NoError(t, err)

	sent, err := f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, sent.DispatchClaimedAt)

	current, err := f.svc.ClaimDispatch(ctx, item.ID, 3, time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusSent, current.Status)

	_, err = f.svc.ClaimDispatch(ctx, snowflake.ID(42), 3, time.Minute)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	item := f.create(t)

	const senders = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimDispatch(context.Background(), item.ID, 3, time.Minute)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrDispatchInProgress)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDeleteTombstonesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	require.NoError(t, f.svc.RecordAttempt(ctx, domain.AttemptRequest{ReviewRequestID: item.ID, Backend: "log", Delivered: true}))
	require.NoError(t, f.svc.Delete(ctx, item.ID))

	_, err := f.svc.Get(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, deletedErr := f.svc.GetByCode(ctx, item.ShortCode)
	_, unknownErr := f.svc.GetByCode(ctx, "zzzzzzz")
	_, malformedErr := f.svc.GetByCode(ctx, "not-a-code")
	assert.ErrorIs(t, deletedErr, domain.ErrNotFound)
	assert.Equal(t, unknownErr, deletedErr)
	assert.Equal(t, malformedErr, deletedErr)

	assert.ErrorIs(t, f.svc.Delete(ctx, item.ID), domain.ErrNotFound)
}

func TestReplaceTextKeepsCodeUnlessRotated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	updated, err := f.svc.ReplaceText(ctx, domain.ReplaceTextRequest{ID: item.ID, ReviewText: "Best crust in town."})
	require.NoError(t, err)
	assert.Equal(t, item.ShortCode, updated.ShortCode)
	assert.Equal(t, "Best crust in town.", updated.ReviewText)

	rotated, err := f.svc.ReplaceText(ctx, domain.ReplaceTextRequest{ID: item.ID, ReviewText: "Lovely evening.", RotateCode: true})
	require.NoError(t, err)
	assert.NotEqual(t, item.ShortCode, rotated.ShortCode)

	_, err = f.svc.GetByCode(ctx, item.ShortCode)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	byNew, err := f.svc.GetByCode(ctx, rotated.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, item.ID, byNew.ID)

	_, err = f.svc.MarkSent(ctx, item.ID)
	require.NoError(t, err)
	_, err = f.svc.ReplaceText(ctx, domain.ReplaceTextRequest{ID: item.ID, ReviewText: "Too late."})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestListByBusinessPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created []domain.ReviewRequest
	for i := 0; i < 5; i++ {
		created = append(created, f.create(t))
		f.clock.Advance(time.Second)
	}

	page, err := f.svc.ListByBusiness(ctx, domain.ListRequest{BusinessID: f.business, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.ReviewRequests, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, created[4].ID, page.ReviewRequests[0].ID)

	var seen []snowflake.ID
	for _, item := range page.ReviewRequests {
		seen = append(seen, item.ID)
	}
	for page.HasMore {
		page, err = f.svc.ListByBusiness(ctx, domain.ListRequest{BusinessID: f.business, PageSize: 2, PageToken: page.NextPageToken})
		require.NoError(t, err)
		for _, item := range page.ReviewRequests {
			seen = append(seen, item.ID)
		}
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, created[0].ID, seen[4])
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t)
	b := f.create(t)
	c := f.create(t)
	f.create(t)

	_, err := f.svc.MarkSent(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkSent(ctx, b.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.MarkClicked(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkFailed(ctx, c.ID, "invalid_contact")
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, f.business)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Counts[domain.StatusGenerated])
	assert.Equal(t, int64(1), stats.Counts[domain.StatusSent])
	assert.Equal(t, int64(1), stats.Counts[domain.StatusClicked])
	assert.Equal(t, int64(1), stats.Counts[domain.StatusFailed])
	assert.Equal(t, int64(2), stats.SentTotal)
	require.NotNil(t, stats.LastClickedAt)
	assert.True(t, stats.LastClickedAt.Equal(f.clock.Now()))

	empty, err := f.svc.Stats(ctx, snowflake.ID(7))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.LastSentAt)
}

func TestRecordAttemptHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.create(t)

	require.NoError(t, f.svc.RecordAttempt(ctx, domain.AttemptRequest{
		ReviewRequestID: item.ID,
		Backend:         "twilio",
		ErrorKind:       "backend_unavailable",
		Detail:          map[string]interface{}{"status": 503},
	}))
	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.RecordAttempt(ctx, domain.AttemptRequest{ReviewRequestID: item.ID, Backend: "twilio", Delivered: true}))

	attempts, err := f.svc.ListAttempts(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, domain.OutcomeFailed, attempts[0].Outcome)
	assert.Equal(t, "backend_unavailable", attempts[0].ErrorKind)
	assert.Equal(t, domain.OutcomeDelivered, attempts[1].Outcome)
}
