package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"pgconn", &pgconn.PgError{Code: "23505"}, true},
		{"pgconn other", &pgconn.PgError{Code: "23503"}, false},
		{"pq", &pq.Error{Code: "23505"}, true},
		{"sqlite", errors.New("constraint failed: UNIQUE constraint failed: short_codes.code (2067)"), true},
		{"mysql", errors.New("Error 1062: Duplicate entry"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)

	d, err := Dialect(Config{Type: "sqlite", Path: "file::memory:"})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "reviews.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("reviews.db"))
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x?mode=memory"))
}
