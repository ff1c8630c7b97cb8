package pipeline

import (
	"context"
	"log/slog"

	"sourcesage/internal/domain/entity"
)

// ContextStage fetches each selected issue and compiles its context.
// Selected URLs that are not among the discovered items are skipped.
type ContextStage struct {
	Fetcher DetailFetcher
}

func (ContextStage) Name() Step { return StepCompileContext }

func (s ContextStage) Execute(ctx context.Context, st *State) error {
	for _, url := range st.Selected {
		if st.hasRecord(url) {
			continue
		}
		item, ok := st.item(url)
		if !ok {
			slog.DebugContext(ctx, "selected issue not in discovery batch, skipping",
				slog.String("url", url))
			continue
		}

		detail := s.Fetcher.FetchDetail(ctx, item.APIURL)
		rec := entity.NewAnalysis(url)
		if err := rec.SetContext(compileContext(detail)); err != nil {
			return err
		}
		st.Records = append(st.Records, *rec)
	}

	slog.InfoContext(ctx, "issue context compiled",
		slog.Int("selected", len(st.Selected)),
		slog.Int("records", len(st.Records)))
	return nil
}
