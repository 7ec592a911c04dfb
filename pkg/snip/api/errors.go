// Package api holds the error kinds shared by the HTTP handlers and the
// single table that maps them onto status codes.
package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/codegen"
	"github.com/mikepea/snip/pkg/snip/store"
)

// Error kinds. Packages wrap these with %w to add detail.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrGone            = errors.New("gone")
	ErrUnavailable     = errors.New("temporarily unavailable")
)

type mapping struct {
	target  error
	status  int
	message string // empty uses the error text
}

// Order matters: more specific errors first.
var mappings = []mapping{
	{codegen.ErrAliasTaken, http.StatusBadRequest, "Alias already taken"},
	{store.ErrDuplicateCode, http.StatusBadRequest, "Short code already taken"},
	{codegen.ErrInvalidAlias, http.StatusBadRequest, ""},
	{ErrInvalidInput, http.StatusBadRequest, ""},
	{ErrUnauthenticated, http.StatusUnauthorized, ""},
	{ErrForbidden, http.StatusForbidden, ""},
	{store.ErrNotFound, http.StatusNotFound, "Link not found"},
	{ErrNotFound, http.StatusNotFound, ""},
	{ErrConflict, http.StatusConflict, ""},
	{ErrGone, http.StatusGone, ""},
	{ErrUnavailable, http.StatusServiceUnavailable, ""},
}

// Status returns the HTTP status for err.
func Status(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing text for err. Server errors never leak
// their cause.
func Message(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			if m.message != "" {
				return m.message
			}
			return err.Error()
		}
	}
	return "Internal server error"
}

// WriteError aborts the request with the status and message for err.
func WriteError(c *gin.Context, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": Message(err)})
}
