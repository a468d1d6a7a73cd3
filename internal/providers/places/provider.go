package places

import (
	"context"
	"errors"
)

type Place struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Resolver turns a Google Maps URL, short link or free-text business name into
// a place.
type Resolver interface {
	Resolve(ctx context.Context, input string) (Place, error)
}

var (
	ErrNotFound   = errors.New("place_not_found")
	ErrEmptyInput = errors.New("place_input_empty")
)
