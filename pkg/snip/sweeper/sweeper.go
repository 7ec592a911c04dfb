// Package sweeper archives and removes links that have not been used
// recently.
package sweeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/store"
	"github.com/mikepea/snip/pkg/snip/tasks"
)

// TaskKind identifies sweep jobs on the task queue.
const TaskKind = "delete-unused-links"

const (
	// DefaultDays is the idle period used by scheduled sweeps.
	DefaultDays = 30
	// MaxDays is the longest idle period a sweep accepts.
	MaxDays = 36500

	// DefaultTimeout bounds the sweep transaction.
	DefaultTimeout = 10 * time.Minute
)

var ErrInvalidDays = fmt.Errorf("days must be an integer between 0 and %d: %w", MaxDays, api.ErrInvalidInput)

// ValidDays reports whether days is an accepted idle period.
func ValidDays(days int) bool {
	return days >= 0 && days <= MaxDays
}

// Payload is the task payload of a sweep job.
type Payload struct {
	Days int `json:"days"`
}

// Result summarises one sweep.
type Result struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived int       `json:"archived"`
}

// Sweeper moves unused links into the archive.
type Sweeper struct {
	links   *store.Links
	timeout time.Duration
	observe func(status string, archived int)
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithObserver is called after every sweep with "done" or "failed".
func WithObserver(fn func(status string, archived int)) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.observe = fn
		}
	}
}

// WithTimeout bounds a whole sweep in place of the store's per-operation
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a sweeper over the link store.
func New(links *store.Links, opts ...Option) *Sweeper {
	s := &Sweeper{
		links:   links,
		timeout: DefaultTimeout,
		observe: func(string, int) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep archives every link last used more than days ago. Links never used
// are kept. The whole sweep is one transaction: on error nothing changes.
func (s *Sweeper) Sweep(ctx context.Context, days int) (*Result, error) {
	if !ValidDays(days) {
		return nil, ErrInvalidDays
	}

	now := s.links.Now()
	res := &Result{Cutoff: now.AddDate(0, 0, -days)}

	err := s.links.Timeout(s.timeout).Transaction(ctx, func(tx *store.Links) error {
		unused, err := tx.ListUnusedSince(ctx, res.Cutoff)
		if err != nil {
			return err
		}
		res.Archived, err = tx.ArchiveAndDelete(ctx, unused, models.ArchiveReasonUnused, now)
		return err
	})
	if err != nil {
		s.observe("failed", 0)
		return nil, fmt.Errorf("sweep: %w", err)
	}

	s.observe("done", res.Archived)
	log.Printf("Sweep archived %d link(s) unused since %s", res.Archived, res.Cutoff.Format(time.RFC3339))
	return res, nil
}

// Register makes the sweeper the handler for TaskKind on q.
func (s *Sweeper) Register(q *tasks.Queue) {
	q.Handle(TaskKind, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode sweep payload: %w", err)
		}
		return s.Sweep(ctx, p.Days)
	})
}
