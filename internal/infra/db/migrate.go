package db

import (
	"database/sql"
)

// MigrateUp creates the cache schema. Statements are idempotent.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entries (
    namespace  TEXT        NOT NULL,
    cache_key  TEXT        NOT NULL,
    value      JSONB       NOT NULL,
    cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (namespace, cache_key)
)`); err != nil {
		return err
	}

	indexes := []string{
		// sweep: DELETE ... WHERE expires_at <= $1
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}
