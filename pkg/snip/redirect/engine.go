package redirect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/store"
)

// ErrExpired is returned for links past their expiry.
var ErrExpired = fmt.Errorf("link has expired: %w", api.ErrGone)

// Outcome labels a resolution for metrics.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeExpired  Outcome = "expired"
	OutcomeError    Outcome = "error"
)

// Engine resolves short codes to redirect targets and records each hit.
type Engine struct {
	links         *store.Links
	enforceExpiry bool
	observe       func(Outcome)
}

// Option configures an Engine.
type Option func(*Engine)

// WithExpiry toggles rejection of expired links.
func WithExpiry(enforce bool) Option {
	return func(e *Engine) {
		e.enforceExpiry = enforce
	}
}

// WithObserver receives the outcome of every resolution.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observe = fn
		}
	}
}

// NewEngine creates a redirect engine. Expiry is enforced by default.
func NewEngine(links *store.Links, opts ...Option) *Engine {
	e := &Engine{
		links:         links,
		enforceExpiry: true,
		observe:       func(Outcome) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve returns the normalized target for code and counts the hit.
// A hit is recorded exactly once per successful resolution.
func (e *Engine) Resolve(ctx context.Context, code string) (string, error) {
	link, err := e.links.FindByCode(ctx, code)
	if err != nil {
		e.observe(outcomeOf(err))
		return "", err
	}

	now := e.links.Now()
	if e.enforceExpiry && link.Expired(now) {
		e.observe(OutcomeExpired)
		return "", ErrExpired
	}

	// The link may be deleted between lookup and increment. Counting by id
	// keeps a recreated code from being credited with this hit.
	if err := e.links.RecordHit(ctx, link.ID, now); err != nil {
		e.observe(outcomeOf(err))
		return "", err
	}

	e.observe(OutcomeFound)
	return NormalizeTarget(link.OriginalURL), nil
}

func outcomeOf(err error) Outcome {
	if errors.Is(err, store.ErrNotFound) {
		return OutcomeNotFound
	}
	return OutcomeError
}

// NormalizeTarget prefixes https:// unless the URL already starts with an
// http or https scheme. The stored URL is never rewritten.
func NormalizeTarget(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + raw
}
