package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces snapshot keys in redis.
const KeyPrefix = "snip:stats:"

// RedisBackend shares snapshots between instances through redis.
type RedisBackend struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisBackend creates a backend on an existing client.
func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisBackend{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to the redis URL and checks it answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (r *RedisBackend) Get(ctx context.Context, code string) (*Snapshot, error) {
	data, err := r.rdb.Get(ctx, KeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisBackend) Set(ctx context.Context, code string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, KeyPrefix+code, data, r.ttl).Err()
}
