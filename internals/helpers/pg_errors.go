package helper

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	PGUniqueViolation     = "23505"
	PGForeignKeyViolation = "23503"
	PGCheckViolation      = "23514"
)

// PGErrorCode returns the SQLSTATE of a Postgres error from either driver,
// or "" when err is not one.
func PGErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func IsUniqueViolation(err error) bool { return PGErrorCode(err) == PGUniqueViolation }

// MapPGError maps a database error to an HTTP status and message.
func MapPGError(err error) (int, string) {
	switch PGErrorCode(err) {
	case PGUniqueViolation:
		return http.StatusConflict, "Data duplikat (unique violation)."
	case PGForeignKeyViolation:
		return http.StatusBadRequest, "Referensi tidak ditemukan (FK violation)."
	case PGCheckViolation:
		return http.StatusBadRequest, "Data tidak valid (check violation)."
	}
	return http.StatusInternalServerError, err.Error()
}
