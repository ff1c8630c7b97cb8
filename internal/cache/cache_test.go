package cache_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcesage/internal/cache"
	"sourcesage/internal/domain/entity"
	"sourcesage/internal/infra/adapter/persistence/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

type failingRepo struct{ err error }

func (f failingRepo) Get(context.Context, string, string) (*entity.CacheEntry, error) {
	return nil, f.err
}
func (f failingRepo) Put(context.Context, entity.CacheEntry) error { return f.err }
func (f failingRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

/* ──────────────────────────────── SkillsKey ──────────────────────────────── */

func TestSkillsKey(t *testing.T) {
	assert.Equal(t, "python_rust", cache.SkillsKey([]string{"rust", "python"}))
	assert.Equal(t, "", cache.SkillsKey(nil))
	assert.NotEqual(t, cache.SkillsKey([]string{"Python"}), cache.SkillsKey([]string{"python"}),
		"keys are not case-normalized")
}

func TestSkillsKey_PermutationInvariant(t *testing.T) {
	skills := []string{"go", "react", "python", "docker", "rust", "fastapi"}
	want := cache.SkillsKey(skills)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		perm := append([]string(nil), skills...)
		r.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		assert.Equal(t, want, cache.SkillsKey(perm), "permutation %v", perm)
	}
}

func TestSkillsKey_DoesNotMutateInput(t *testing.T) {
	skills := []string{"rust", "go"}
	_ = cache.SkillsKey(skills)
	assert.Equal(t, []string{"rust", "go"}, skills)
}

/* ──────────────────────────────── Get/Put ──────────────────────────────── */

func TestTTLCache_RoundTrip(t *testing.T) {
	repo, err := memory.NewCacheRepo(16)
	require.NoError(t, err)
	clk := newClock()
	c := cache.NewAnalyses(repo, cache.DefaultAnalysesTTL, cache.WithClock(clk.now))
	ctx := context.Background()

	want := entity.Analysis{
		IssueURL:        "https://github.com/o/r/issues/1",
		Context:         "**Issue Title:** Fix typo",
		Plan:            "1. Fix it",
		GeneratedPrompt: "Fix the typo",
	}
	c.Put(ctx, want.IssueURL, want)

	got, ok := c.Get(ctx, want.IssueURL)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	_, ok = c.Get(ctx, "https://github.com/o/r/issues/2")
	assert.False(t, ok)
}

func TestTTLCache_ExpiredEntriesAreNeverReturned(t *testing.T) {
	repo, _ := memory.NewCacheRepo(16)
	clk := newClock()
	c := cache.NewIssues(repo, 24*time.Hour, cache.WithClock(clk.now))
	ctx := context.Background()
	key := cache.SkillsKey([]string{"python"})

	c.Put(ctx, key, []entity.Issue{{URL: "u1", Title: "t"}})

	clk.advance(24*time.Hour - time.Second)
	_, ok := c.Get(ctx, key)
	assert.True(t, ok, "still live one second before expiry")

	clk.advance(time.Second)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok, "now == expiresAt is expired")

	stored, err := repo.Get(ctx, cache.NamespaceIssues, key)
	require.NoError(t, err)
	assert.NotNil(t, stored, "expiry is lazy; the entry is still stored")
}

func TestTTLCache_PutOverwrites(t *testing.T) {
	repo, _ := memory.NewCacheRepo(16)
	clk := newClock()
	c := cache.NewIssues(repo, time.Hour, cache.WithClock(clk.now))
	ctx := context.Background()

	c.Put(ctx, "go", []entity.Issue{{URL: "a"}})
	clk.advance(50 * time.Minute)
	c.Put(ctx, "go", []entity.Issue{{URL: "b"}})
	clk.advance(50 * time.Minute)

	got, ok := c.Get(ctx, "go")
	require.True(t, ok, "second put restarted the TTL")
	assert.Equal(t, "b", got[0].URL)
}

func TestTTLCache_PutTTL(t *testing.T) {
	repo, _ := memory.NewCacheRepo(16)
	clk := newClock()
	c := cache.NewIssues(repo, time.Hour, cache.WithClock(clk.now))
	ctx := context.Background()

	c.PutTTL(ctx, "short", []entity.Issue{{URL: "a"}}, time.Minute)
	c.PutTTL(ctx, "never", []entity.Issue{{URL: "a"}}, 0)

	clk.advance(2 * time.Minute)
	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "never")
	assert.False(t, ok)
}

func TestTTLCache_NamespacesAreIndependent(t *testing.T) {
	repo, _ := memory.NewCacheRepo(16)
	ctx := context.Background()
	issues := cache.NewIssues(repo, time.Hour)
	analyses := cache.NewAnalyses(repo, time.Hour)

	issues.Put(ctx, "k", []entity.Issue{{URL: "a"}})
	_, ok := analyses.Get(ctx, "k")
	assert.False(t, ok)
}

/* ──────────────────────────────── degradation ──────────────────────────────── */

func TestTTLCache_StoreFailuresDegradeToMiss(t *testing.T) {
	c := cache.NewAnalyses(failingRepo{err: errors.New("connection refused")}, time.Hour)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.Put(ctx, "u", entity.Analysis{IssueURL: "u"})
	})
	_, ok := c.Get(ctx, "u")
	assert.False(t, ok)
}

func TestTTLCache_NilRepositoryIsNoop(t *testing.T) {
	c := cache.NewAnalyses(nil, time.Hour)
	ctx := context.Background()

	c.Put(ctx, "u", entity.Analysis{IssueURL: "u"})
	_, ok := c.Get(ctx, "u")
	assert.False(t, ok)

	var nilCache *cache.TTLCache[entity.Analysis]
	nilCache.Put(ctx, "u", entity.Analysis{})
	_, ok = nilCache.Get(ctx, "u")
	assert.False(t, ok)
}

func TestTTLCache_UndecodableEntryIsMiss(t *testing.T) {
	repo, _ := memory.NewCacheRepo(16)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, entity.CacheEntry{
		Namespace: cache.NamespaceAnalyses,
		Key:       "u",
		Value:     []byte(`"not an object"`),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	_, ok := cache.NewAnalyses(repo, time.Hour).Get(ctx, "u")
	assert.False(t, ok)
}
