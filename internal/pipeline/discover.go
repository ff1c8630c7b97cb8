package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"sourcesage/internal/domain/entity"
)

// DefaultDiscoverLimit is the number of issues requested per discovery.
const DefaultDiscoverLimit = 15

// DiscoverStage populates Items from the skills. Each discovery starts a
// new cycle, so earlier records and reports are dropped.
type DiscoverStage struct {
	Finder IssueFinder
	Limit  int
}

func (DiscoverStage) Name() Step { return StepDiscover }

func (s DiscoverStage) Execute(ctx context.Context, st *State) error {
	if len(st.Skills) == 0 {
		return fmt.Errorf("%w: no skills provided", entity.ErrConfiguration)
	}
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}

	items, err := s.Finder.Search(ctx, st.Skills, limit)
	if err != nil {
		return fmt.Errorf("search issues: %w", err)
	}

	slog.InfoContext(ctx, "issues discovered",
		slog.Any("skills", st.Skills),
		slog.Int("count", len(items)))

	st.Items = items
	st.Records = nil
	st.Reports = nil
	return nil
}
