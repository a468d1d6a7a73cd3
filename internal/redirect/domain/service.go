package domain

import (
	"context"
	"errors"
)

// Payload is everything the landing page needs. It carries no internal ids.
type Payload struct {
	BusinessName string `json:"business_name"`
	ReviewText   string `json:"review_text"`
	TargetURL    string `json:"target_url"`
}

type Service interface {
	// ResolveAndMark looks up a public code and records the click.
	ResolveAndMark(ctx context.Context, code string) (Payload, error)
}

var ErrNotFound = errors.New("not_found")
