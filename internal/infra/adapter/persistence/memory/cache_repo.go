// Package memory is an in-process cache backend bounded by an LRU.
package memory

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/repository"
)

// DefaultSize bounds the number of stored entries.
const DefaultSize = 4096

type CacheRepo struct {
	entries *lru.Cache[string, entity.CacheEntry]
}

// NewCacheRepo creates a repository holding at most size entries. When
// full, the least recently used entry is evicted.
func NewCacheRepo(size int) (repository.CacheRepository, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, entity.CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("new lru: %w", err)
	}
	return &CacheRepo{entries: c}, nil
}

func storageKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (r *CacheRepo) Get(_ context.Context, namespace, key string) (*entity.CacheEntry, error) {
	e, ok := r.entries.Get(storageKey(namespace, key))
	if !ok {
		return nil, nil
	}
	e.Value = append([]byte(nil), e.Value...)
	return &e, nil
}

func (r *CacheRepo) Put(_ context.Context, entry entity.CacheEntry) error {
	entry.Value = append([]byte(nil), entry.Value...)
	r.entries.Add(storageKey(entry.Namespace, entry.Key), entry)
	return nil
}

func (r *CacheRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, k := range r.entries.Keys() {
		e, ok := r.entries.Peek(k)
		if ok && !e.Live(now) {
			if r.entries.Remove(k) {
				n++
			}
		}
	}
	return n, nil
}
