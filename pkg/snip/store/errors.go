package store

import (
	"errors"
	"fmt"

	"github.com/mikepea/snip/pkg/snip/database"
)

var (
	// ErrNotFound is returned when no link matches.
	ErrNotFound = errors.New("link not found")
	// ErrDuplicateCode is returned when a short code or alias is already taken.
	ErrDuplicateCode = errors.New("short code already taken")
	// ErrStorageUnavailable is returned when the datastore cannot serve the
	// operation in time. Callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrPartialDelete aborts a batch whose rows changed underneath it.
	ErrPartialDelete = errors.New("links changed during archive")
)

// classify maps driver errors onto the store's error kinds. Errors that are
// already one of the kinds pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateCode),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrPartialDelete):
		return err
	case database.IsNotFound(err):
		return ErrNotFound
	case database.IsUniqueViolation(err):
		return ErrDuplicateCode
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
}
