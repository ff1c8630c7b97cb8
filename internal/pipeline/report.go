package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
	"sourcesage/internal/observability/metrics"
)

const (
	reportMaxTokens   = 1200
	reportTemperature = 0.6
)

// ReportStage drafts and renders one proposal document per record.
type ReportStage struct {
	Generator   llm.Generator
	Renderer    Renderer
	Chain       Chain
	Parallelism int
}

func (ReportStage) Name() Step { return StepDraftReport }

func (s ReportStage) Execute(ctx context.Context, st *State) error {
	refs := make([]entity.ReportRef, len(st.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(s.Parallelism))
	for i := range st.Records {
		rec := st.Records[i]
		g.Go(func() error {
			ref, err := s.draft(gctx, rec)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	st.Reports = append(st.Reports, refs...)
	return nil
}

func (s ReportStage) draft(ctx context.Context, rec entity.Analysis) (entity.ReportRef, error) {
	if rec.Context == "" {
		return entity.ReportRef{}, fmt.Errorf("%w: %s has no context before drafting", ErrInvariant, rec.IssueURL)
	}

	body, ok, err := generate(ctx, s.Generator,
		s.Chain.call(reportPrompt(rec.Context, rec.Plan), reportMaxTokens, reportTemperature))
	if err != nil {
		return entity.ReportRef{}, err
	}
	if !ok {
		metrics.RecordDegradedOutput(StepDraftReport.String())
		body = reportSkeleton(rec.Context, rec.Plan)
	}

	title := reportTitle(rec.Context)
	url, err := s.Renderer.Render(ctx, title, body)
	if err != nil {
		return entity.ReportRef{}, fmt.Errorf("render report for %s: %w", rec.IssueURL, err)
	}
	metrics.RecordReportGenerated()
	return entity.ReportRef{IssueTitle: title, DownloadURL: url}, nil
}
