package helper

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPGErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: PGUniqueViolation})
	assert.Equal(t, PGUniqueViolation, PGErrorCode(wrapped))
	assert.Equal(t, PGForeignKeyViolation, PGErrorCode(&pq.Error{Code: "23503"}))
	assert.Empty(t, PGErrorCode(errors.New("boom")))
	assert.Empty(t, PGErrorCode(nil))
}

func TestMapPGError(t *testing.T) {
	code, _ := MapPGError(&pgconn.PgError{Code: PGUniqueViolation})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = MapPGError(&pq.Error{Code: "23514"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, msg := MapPGError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "boom", msg)
}
