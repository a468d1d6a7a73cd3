package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/reviewboost/pkg/db/pagination"
)

type CreateRequest struct {
	BusinessID      snowflake.ID
	ShortCode       string
	CustomerContact string
	Carrier         string
	ReviewText      string
}

type ListRequest struct {
	BusinessID snowflake.ID
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	pagination.PageInfo
	ReviewRequests []ReviewRequest `json:"review_requests"`
}

// ReplaceTextRequest swaps the review text of a request that has not been
// delivered yet. When RotateCode is set a fresh code is issued and the old one
// is retired.
type ReplaceTextRequest struct {
	ID         snowflake.ID
	ReviewText string
	RotateCode bool
}

type AttemptRequest struct {
	ReviewRequestID snowflake.ID
	Backend         string
	Delivered       bool
	ErrorKind       string
	Detail          map[string]interface{}
}

type Service interface {
	Create(context.Context, CreateRequest) (ReviewRequest, error)
	Get(context.Context, snowflake.ID) (ReviewRequest, error)
	GetByCode(context.Context, string) (ReviewRequest, error)
	ListByBusiness(context.Context, ListRequest) (ListResponse, error)
	Recent(ctx context.Context, businessID snowflake.ID, limit int) ([]ReviewRequest, error)

	MarkSent(context.Context, snowflake.ID) (ReviewRequest, error)
	MarkFailed(ctx context.Context, id snowflake.ID, reason string) (ReviewRequest, error)
	MarkClicked(context.Context, snowflake.ID) (ReviewRequest, error)

	// ClaimDispatch must succeed before a request is handed to a backend.
	// MarkSent and MarkFailed end the claim; ReleaseDispatch gives it up
	// without recording an attempt.
	ClaimDispatch(ctx context.Context, id snowflake.ID, maxAttempts int, lease time.Duration) (ReviewRequest, error)
	ReleaseDispatch(context.Context, snowflake.ID) error

	ReplaceText(context.Context, ReplaceTextRequest) (ReviewRequest, error)
	Delete(context.Context, snowflake.ID) error

	RecordAttempt(context.Context, AttemptRequest) error
	ListAttempts(context.Context, snowflake.ID) ([]DispatchAttempt, error)
	Stats(ctx context.Context, businessID snowflake.ID) (Stats, error)
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrInvalidContact     = errors.New("invalid_contact")
	ErrInvalidText        = errors.New("invalid_review_text")
	ErrInvalidShortCode   = errors.New("invalid_short_code")
	ErrInvalidBusiness    = errors.New("invalid_business")
	ErrDispatchInProgress = errors.New("dispatch_in_progress")
	ErrAttemptsExhausted  = errors.New("send_attempts_exhausted")
)
