package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CacheDB is the policy for the cache database: five straight failures
// open it, and a cache miss or a canceled request never counts.
func CacheDB() Policy {
	return Policy{
		Name:       "cache-db",
		Probes:     3,
		Window:     time.Minute,
		Cooldown:   30 * time.Second,
		TripRatio:  1.0,
		MinSamples: 5,
		Ignore: func(err error) bool {
			return errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled)
		},
	}
}

// GuardedDB runs cache statements through a Breaker. While it is open,
// reads fail fast and the cache layer degrades them to misses.
type GuardedDB struct {
	b  *Breaker
	db *sql.DB
}

// Guard wraps db with the CacheDB policy.
func Guard(db *sql.DB) *GuardedDB {
	return GuardWith(db, CacheDB())
}

func GuardWith(db *sql.DB, p Policy) *GuardedDB {
	return &GuardedDB{b: New(p), db: db}
}

func (g *GuardedDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return Call(g.b, func() (sql.Result, error) {
		return g.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowScan runs a single-row query and scans it inside the breaker so
// that scan failures count against it.
func (g *GuardedDB) QueryRowScan(ctx context.Context, query string, args []interface{}, dest ...interface{}) error {
	return g.b.Do(func() error {
		return g.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
}

func (g *GuardedDB) Breaker() *Breaker { return g.b }
