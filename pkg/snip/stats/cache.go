// Package stats serves per-link statistics through a read-through cache.
// Entries are not invalidated on writes: a snapshot may lag the store by up
// to the cache TTL.
package stats

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/store"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a snapshot is served before it is refreshed.
const DefaultTTL = 20 * time.Minute

// ErrMiss is returned by a Backend when it holds no entry for the key.
var ErrMiss = errors.New("cache miss")

// Snapshot is the cached projection of a link.
type Snapshot struct {
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	Clicks      uint64     `json:"clicks"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

// FromLink projects a link into a snapshot.
func FromLink(link *models.Link) *Snapshot {
	return &Snapshot{
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		Clicks:      link.Clicks,
		LastUsedAt:  link.LastUsedAt,
	}
}

// Backend stores snapshots with a TTL.
type Backend interface {
	Get(ctx context.Context, code string) (*Snapshot, error)
	Set(ctx context.Context, code string, snap *Snapshot) error
}

// Cache is a read-through snapshot cache in front of the link store.
type Cache struct {
	links   *store.Links
	backend Backend
	group   singleflight.Group
	observe func(hit bool)

	loadTimeout time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver is told whether each lookup was a hit.
func WithObserver(fn func(hit bool)) Option {
	return func(c *Cache) {
		if fn != nil {
			c.observe = fn
		}
	}
}

// WithLoadTimeout bounds a store read made on a miss.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// NewCache creates a cache over the given backend.
func NewCache(links *store.Links, backend Backend, opts ...Option) *Cache {
	c := &Cache{
		links:   links,
		backend: backend,
		observe: func(bool) {},

		loadTimeout: store.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the snapshot for code, loading it from the store on a miss.
// Concurrent misses for the same code share one store read. Backend
// failures fall through to the store.
func (c *Cache) Get(ctx context.Context, code string) (*Snapshot, error) {
	snap, err := c.backend.Get(ctx, code)
	if err == nil {
		c.observe(true)
		return snap, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Printf("stats cache read %s: %v", code, err)
	}
	c.observe(false)

	// Shared by every waiter; detached from the caller that started it.
	v, err, _ := c.group.Do(code, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		link, err := c.links.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		snap := FromLink(link)
		if err := c.backend.Set(ctx, code, snap); err != nil {
			log.Printf("stats cache write %s: %v", code, err)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}
