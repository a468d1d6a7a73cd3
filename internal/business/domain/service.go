package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// UpsertRequest registers a place, or refreshes its name and address when the
// place is already known.
type UpsertRequest struct {
	PlaceID string
	Name    string
	Address string
}

type Service interface {
	Upsert(context.Context, UpsertRequest) (Business, error)
	Get(context.Context, snowflake.ID) (Business, error)
	// Find accepts a business id or slug.
	Find(context.Context, string) (Business, error)
	List(context.Context) ([]Business, error)
}

var (
	ErrInvalidPlaceID   = errors.New("invalid_place_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidReference = errors.New("invalid_business_reference")
	ErrNotFound         = errors.New("not_found")
)
