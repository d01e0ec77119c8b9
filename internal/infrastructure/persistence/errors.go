package persistence

import (
	"errors"
	"strings"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err was raised by a unique index,
// for both the postgres and the sqlite driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translateError maps driver errors onto the shared error kinds.
// Errors that already carry a domain code pass through untouched.
func translateError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if IsUniqueViolation(err) {
		return shared.NewDomainError(shared.CodeConflict, msg+": duplicate key").WithCause(err)
	}
	return shared.NewPersistenceError(msg, err)
}
