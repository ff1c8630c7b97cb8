// Package cache memoizes discovery results and per-issue analyses on top of
// a CacheRepository. Expiry is evaluated lazily at read time and every
// storage failure degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/repository"
)

const (
	NamespaceIssues   = "issues"
	NamespaceAnalyses = "analyses"

	DefaultIssuesTTL   = 24 * time.Hour
	DefaultAnalysesTTL = 168 * time.Hour
)

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// TTLCache is a typed view of one namespace. Values are stored as JSON.
// A TTLCache with a nil repository is a valid no-op cache.
type TTLCache[V any] struct {
	repo      repository.CacheRepository
	namespace string
	ttl       time.Duration
	opts      options
}

// New returns a cache for namespace whose Put uses ttl.
func New[V any](repo repository.CacheRepository, namespace string, ttl time.Duration, opts ...Option) *TTLCache[V] {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[V]{repo: repo, namespace: namespace, ttl: ttl, opts: o}
}

// NewIssues returns the discovery cache, keyed by SkillsKey.
func NewIssues(repo repository.CacheRepository, ttl time.Duration, opts ...Option) *TTLCache[[]entity.Issue] {
	return New[[]entity.Issue](repo, NamespaceIssues, ttl, opts...)
}

// NewAnalyses returns the analysis cache, keyed by issue URL.
func NewAnalyses(repo repository.CacheRepository, ttl time.Duration, opts ...Option) *TTLCache[entity.Analysis] {
	return New[entity.Analysis](repo, NamespaceAnalyses, ttl, opts...)
}

func (c *TTLCache[V]) Namespace() string { return c.namespace }

// Get returns the value for key only if it is stored and not expired.
func (c *TTLCache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if c == nil || c.repo == nil {
		return zero, false
	}

	entry, err := c.repo.Get(ctx, c.namespace, key)
	if err != nil {
		c.opts.logger.WarnContext(ctx, "cache read failed, treating as miss",
			slog.String("namespace", c.namespace),
			slog.String("key", key),
			slog.Any("error", err))
		metrics.RecordCacheLookup(c.namespace, "error")
		return zero, false
	}
	if entry == nil {
		metrics.RecordCacheLookup(c.namespace, "miss")
		return zero, false
	}
	if !entry.Live(c.opts.now()) {
		metrics.RecordCacheLookup(c.namespace, "expired")
		return zero, false
	}

	var v V
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		c.opts.logger.WarnContext(ctx, "cache entry undecodable, treating as miss",
			slog.String("namespace", c.namespace),
			slog.String("key", key),
			slog.Any("error", err))
		metrics.RecordCacheLookup(c.namespace, "error")
		return zero, false
	}
	metrics.RecordCacheLookup(c.namespace, "hit")
	return v, true
}

// Put stores value under key with the cache's default TTL.
func (c *TTLCache[V]) Put(ctx context.Context, key string, value V) {
	if c == nil {
		return
	}
	c.PutTTL(ctx, key, value, c.ttl)
}

// PutTTL upserts value under key. Failures are logged and counted; they
// never reach the caller.
func (c *TTLCache[V]) PutTTL(ctx context.Context, key string, value V, ttl time.Duration) {
	if c == nil || c.repo == nil || ttl <= 0 {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.writeFailed(ctx, key, err)
		return
	}
	now := c.opts.now()
	if err := c.repo.Put(ctx, entity.CacheEntry{
		Namespace: c.namespace,
		Key:       key,
		Value:     raw,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}); err != nil {
		c.writeFailed(ctx, key, err)
	}
}

func (c *TTLCache[V]) writeFailed(ctx context.Context, key string, err error) {
	c.opts.logger.WarnContext(ctx, "cache write failed",
		slog.String("namespace", c.namespace),
		slog.String("key", key),
		slog.Any("error", err))
	metrics.RecordCacheWriteError(c.namespace)
}

// SkillsKey is the discovery cache key: the skills sorted and joined with
// "_". It is order-invariant but not case or whitespace normalized, so
// "Python" and "python" are different keys.
func SkillsKey(skills []string) string {
	sorted := append([]string(nil), skills...)
	sort.Strings(sorted)
	return strings.Join(sorted, "_")
}
