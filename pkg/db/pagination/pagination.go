package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size to [1, MaxPageSize].
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	if cursor.ID == "" || cursor.CreatedAt == "" {
		return nil, ErrInvalidPageToken
	}

	return &cursor, nil
}

// BuildCursorPageInfo expects data fetched with limit+1 rows and trims it.
func BuildCursorPageInfo[T any](data []*T, limit int, extractCursor func(*T) Cursor) ([]*T, *PageInfo, error) {
	if len(data) <= limit {
		return data, &PageInfo{HasMore: false}, nil
	}

	data = data[:limit]
	token, err := EncodeCursor(extractCursor(data[len(data)-1]))
	if err != nil {
		return nil, nil, err
	}

	return data, &PageInfo{HasMore: true, NextPageToken: token}, nil
}
