package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

// ErrorDetails appends postgres detail and hint to the error text.
func ErrorDetails(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		var parts []string
		if pgErr.Detail != "" {
			parts = append(parts, "detail: "+pgErr.Detail)
		}
		if pgErr.Hint != "" {
			parts = append(parts, "hint: "+pgErr.Hint)
		}
		if len(parts) > 0 {
			return fmt.Errorf("%w: %s", err, strings.Join(parts, ", "))
		}
	}
	return err
}

// IsDBError reports whether err was raised by the database layer.
func IsDBError(err error) bool {
	if oe, ok := oops.AsOops(err); ok {
		return lo.Contains(oe.Tags(), "db")
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation on
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	// mattn/go-sqlite3 without error translation
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
