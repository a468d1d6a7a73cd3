package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	"github.com/smallbiznis/reviewboost/internal/config"
	"github.com/smallbiznis/reviewboost/internal/providers/dispatch"
	"github.com/smallbiznis/reviewboost/internal/providers/places"
)

type Service interface {
	Generate(context.Context, GenerateRequest) (BatchResult, error)
	Send(context.Context, SendRequest) (SendResult, error)
	Regenerate(ctx context.Context, id snowflake.ID, req RegenerateRequest) (RegenerateResult, error)
	Dashboard(ctx context.Context, businessRef string) (Dashboard, error)
	ListBusinesses(context.Context) ([]businessdomain.Business, error)
	ResolvePlace(ctx context.Context, input string) (places.Place, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Diagnose(context.Context) dispatch.Report
	SendTest(context.Context, SendTestRequest) (dispatch.Result, error)
	Carriers() []config.Carrier
}

// DispatchLock serializes the dispatch of one review request across
// instances. ok is false while another holder owns the request.
type DispatchLock interface {
	TryLockRequest(ctx context.Context, requestID string) (token string, ok bool, err error)
	ReleaseRequest(ctx context.Context, requestID, token string) error
}

var (
	ErrNoContacts       = errors.New("contacts_required")
	ErrTooManyContacts  = errors.New("too_many_contacts")
	ErrBusinessRequired = errors.New("business_required")
	ErrNoItems          = errors.New("items_required")
	ErrTooManyItems     = errors.New("too_many_items")
)
