// Package redis is the Redis cache backend. Entries are JSON documents whose
// Redis TTL outlives their logical expiry by a retention window, so expiry
// stays a read-time decision made by the cache layer.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/repository"
)

const (
	keyPrefix = "sourcesage:cache:"

	// DefaultRetention keeps expired entries readable until the next sweep.
	DefaultRetention = time.Hour

	scanBatch = 200
)

type CacheRepo struct {
	client    goredis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

// NewCacheRepo returns a repository backed by client. A non-positive
// retention uses DefaultRetention.
func NewCacheRepo(client goredis.UniversalClient, retention time.Duration) repository.CacheRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CacheRepo{client: client, retention: retention, now: time.Now}
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %w", entity.ErrConfiguration, err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// storedEntry is the JSON document kept under each key.
type storedEntry struct {
	Value     json.RawMessage `json:"value"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func redisKey(namespace, key string) string {
	return keyPrefix + namespace + ":" + key
}

func (r *CacheRepo) Get(ctx context.Context, namespace, key string) (*entity.CacheEntry, error) {
	raw, err := r.client.Get(ctx, redisKey(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	var s storedEntry
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &entity.CacheEntry{
		Namespace: namespace,
		Key:       key,
		Value:     []byte(s.Value),
		CachedAt:  s.CachedAt,
		ExpiresAt: s.ExpiresAt,
	}, nil
}

func (r *CacheRepo) Put(ctx context.Context, entry entity.CacheEntry) error {
	payload, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	ttl := entry.ExpiresAt.Sub(r.now()) + r.retention
	if ttl <= 0 {
		// Already past retention; nothing a reader could use.
		return nil
	}
	if err := r.client.Set(ctx, redisKey(entry.Namespace, entry.Key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	return nil
}

// DeleteExpired removes logically expired entries ahead of their Redis TTL.
func (r *CacheRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("DeleteExpired: scan: %w", err)
		}
		for _, k := range keys {
			raw, err := r.client.Get(ctx, k).Bytes()
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if err != nil {
				return deleted, fmt.Errorf("DeleteExpired: get: %w", err)
			}
			var s storedEntry
			if err := json.Unmarshal(raw, &s); err == nil && now.Before(s.ExpiresAt) {
				continue
			}
			n, err := r.client.Del(ctx, k).Result()
			if err != nil {
				return deleted, fmt.Errorf("DeleteExpired: del: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func encodeEntry(e entity.CacheEntry) ([]byte, error) {
	value := json.RawMessage(e.Value)
	if !json.Valid(value) {
		return nil, fmt.Errorf("value for %s/%s is not valid JSON", e.Namespace, e.Key)
	}
	return json.Marshal(storedEntry{Value: value, CachedAt: e.CachedAt, ExpiresAt: e.ExpiresAt})
}
