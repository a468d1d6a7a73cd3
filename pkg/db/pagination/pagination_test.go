package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("not base64!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id string }
	rows := []*row{{"3"}, {"2"}, {"1"}}

	page, info, err := BuildCursorPageInfo(rows, 2, func(r *row) Cursor {
		return Cursor{ID: r.id, CreatedAt: "t"}
	})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.NotEmpty(t, info.NextPageToken)

	page, info, err = BuildCursorPageInfo(rows, 5, func(r *row) Cursor { return Cursor{} })
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
