// Package discover implements the issue search use case: validated skill
// lists answered from the discovery cache or a fresh search.
package discover

import (
	"context"
	"fmt"
	"log/slog"

	"sourcesage/internal/cache"
	"sourcesage/internal/domain/entity"
	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/pipeline"
)

// Input is a search request.
type Input struct {
	Skills     []string
	MaxResults int
}

// Result holds at most MaxResults issues out of TotalFound.
type Result struct {
	Issues     []entity.Issue
	TotalFound int
	FromCache  bool
}

// Service searches for good first issues.
type Service struct {
	Finder pipeline.IssueFinder
	Cache  *cache.TTLCache[[]entity.Issue]

	// SearchLimit is the batch fetched and cached per skill set. Zero means
	// entity.MaxSearchLimit, so any later MaxResults can be answered from
	// the cached batch.
	SearchLimit int
}

// Search validates in, then answers from the cache or runs discovery.
// Empty search results are not cached.
func (s *Service) Search(ctx context.Context, in Input) (*Result, error) {
	if in.MaxResults == 0 {
		in.MaxResults = entity.DefaultLimit
	}
	if err := entity.ValidateSkills(in.Skills); err != nil {
		return nil, err
	}
	if err := entity.ValidateLimit(in.MaxResults); err != nil {
		return nil, err
	}

	key := cache.SkillsKey(in.Skills)
	if found, ok := s.Cache.Get(ctx, key); ok && len(found) > 0 {
		metrics.RecordIssuesDiscovered("cache", len(found))
		return newResult(found, in.MaxResults, true), nil
	}

	limit := s.SearchLimit
	if limit <= 0 {
		limit = entity.MaxSearchLimit
	}
	st := pipeline.NewState(in.Skills)
	if err := (pipeline.DiscoverStage{Finder: s.Finder, Limit: limit}).Execute(ctx, st); err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	metrics.RecordIssuesDiscovered("search", len(st.Items))

	if len(st.Items) > 0 {
		s.Cache.Put(ctx, key, st.Items)
	} else {
		slog.InfoContext(ctx, "no issues found", slog.Any("skills", in.Skills))
	}
	return newResult(st.Items, in.MaxResults, false), nil
}

func newResult(found []entity.Issue, limit int, fromCache bool) *Result {
	issues := found
	if len(issues) > limit {
		issues = issues[:limit]
	}
	return &Result{Issues: issues, TotalFound: len(found), FromCache: fromCache}
}
