package repository

import (
	"context"
	"time"

	"sourcesage/internal/domain/entity"
)

// CacheRepository stores cache entries by namespace and key. Get returns
// the stored entry even if it has expired; expiry is the caller's decision.
// A miss is (nil, nil).
type CacheRepository interface {
	Get(ctx context.Context, namespace, key string) (*entity.CacheEntry, error)
	Put(ctx context.Context, entry entity.CacheEntry) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
