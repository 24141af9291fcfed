package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505"}, true},
		{"pq unique", &pq.Error{Code: "23505"}, true},
		{"fk", &pgconn.PgError{Code: "23503"}, false},
		{"plain", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapErr("op", tt.err)
			assert.Equal(t, tt.conflict, errors.Is(err, ErrJournalConflict))
			assert.ErrorContains(t, err, "op")
		})
	}
}
