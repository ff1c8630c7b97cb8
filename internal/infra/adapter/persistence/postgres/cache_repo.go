// Package postgres is the PostgreSQL cache backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/repository"
	"sourcesage/internal/resilience/circuitbreaker"
)

type CacheRepo struct {
	db *circuitbreaker.GuardedDB
}

// NewCacheRepo wraps db with the cache database circuit breaker.
func NewCacheRepo(db *sql.DB) repository.CacheRepository {
	return &CacheRepo{db: circuitbreaker.Guard(db)}
}

func (repo *CacheRepo) Get(ctx context.Context, namespace, key string) (*entity.CacheEntry, error) {
	const query = `
SELECT value, cached_at, expires_at
FROM cache_entries
WHERE namespace = $1 AND cache_key = $2
LIMIT 1`
	defer observe("cache_get", time.Now())

	e := entity.CacheEntry{Namespace: namespace, Key: key}
	err := repo.db.QueryRowScan(ctx, query, []interface{}{namespace, key},
		&e.Value, &e.CachedAt, &e.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &e, nil
}

func (repo *CacheRepo) Put(ctx context.Context, entry entity.CacheEntry) error {
	const query = `
INSERT INTO cache_entries (namespace, cache_key, value, cached_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (namespace, cache_key) DO UPDATE
SET value = EXCLUDED.value,
    cached_at = EXCLUDED.cached_at,
    expires_at = EXCLUDED.expires_at`
	defer observe("cache_put", time.Now())

	if _, err := repo.db.ExecContext(ctx, query,
		entry.Namespace, entry.Key, entry.Value, entry.CachedAt, entry.ExpiresAt,
	); err != nil {
		return fmt.Errorf("Put: %w", err)
	}
	return nil
}

func (repo *CacheRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM cache_entries WHERE expires_at <= $1`
	defer observe("cache_sweep", time.Now())

	res, err := repo.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: rows affected: %w", err)
	}
	return n, nil
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}
