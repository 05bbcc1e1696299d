package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error is a unique
// constraint violation. Postgres errors are matched by SQLSTATE; the
// message fallback covers the sqlite driver used in tests.
func IsUniqueViolation(err error, constraintName ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		if len(constraintName) > 0 && constraintName[0] != "" {
			return pgErr.ConstraintName == constraintName[0]
		}
		return true
	}

	msg := err.Error()
	if len(constraintName) > 0 && constraintName[0] != "" {
		return strings.Contains(msg, constraintName[0])
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
