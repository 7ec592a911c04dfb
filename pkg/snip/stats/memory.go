package stats

import (
	"context"
	"errors"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	libstore "github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps snapshots in process.
type MemoryBackend struct {
	cache *cache.Cache[*Snapshot]
	ttl   time.Duration
}

// NewMemoryBackend creates an in-process backend with the given TTL.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := gocache.New(ttl, 2*ttl)
	return &MemoryBackend{
		cache: cache.New[*Snapshot](gocache_store.NewGoCache(client, libstore.WithExpiration(ttl))),
		ttl:   ttl,
	}
}

func (m *MemoryBackend) Get(ctx context.Context, code string) (*Snapshot, error) {
	snap, err := m.cache.Get(ctx, code)
	if err != nil {
		var notFound *libstore.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrMiss
		}
		return nil, err
	}
	if snap == nil {
		return nil, ErrMiss
	}
	return snap, nil
}

func (m *MemoryBackend) Set(ctx context.Context, code string, snap *Snapshot) error {
	return m.cache.Set(ctx, code, snap, libstore.WithExpiration(m.ttl))
}
