// Package analyze is the orchestrator: it answers analysis requests from
// the analysis cache where it can and runs the pipeline only for the rest.
package analyze

import (
	"context"
	"fmt"
	"log/slog"

	"sourcesage/internal/cache"
	"sourcesage/internal/domain/entity"
	"sourcesage/internal/pipeline"
)

// Request asks for analyses of up to entity.MaxIssueURLs issues.
type Request struct {
	IssueURLs       []string
	GenerateReports bool
}

// Result lists cached records first, then freshly computed ones.
type Result struct {
	Records []entity.Analysis
	Reports []entity.ReportRef
	Cached  int
}

// Resolver maps issue page URLs to discoverable issues. URLs it cannot
// resolve are left out.
type Resolver interface {
	Resolve(urls []string) []entity.Issue
}

// Service orchestrates cache lookups and pipeline runs.
type Service struct {
	Machine  *pipeline.Machine
	Cache    *cache.TTLCache[entity.Analysis]
	Resolver Resolver
}

// WithObserver returns a copy of s whose pipeline runs report progress to o.
func (s *Service) WithObserver(o pipeline.Observer) *Service {
	cp := *s
	cp.Machine = s.Machine.Observe(o)
	return &cp
}

// Analyze returns an analysis per resolvable URL. Reports are drafted for
// the freshly computed records, or for the cached ones when nothing had to
// be computed; reports themselves are never cached. A pipeline failure
// fails the whole request.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	urls := dedupe(req.IssueURLs)
	if err := entity.ValidateIssueURLs(urls); err != nil {
		return nil, err
	}

	var (
		hits  []entity.Analysis
		needs []string
	)
	for _, u := range urls {
		if rec, ok := s.Cache.Get(ctx, u); ok {
			hits = append(hits, rec)
			continue
		}
		needs = append(needs, u)
	}

	slog.InfoContext(ctx, "analysis request partitioned",
		slog.Int("cached", len(hits)),
		slog.Int("to_compute", len(needs)),
		slog.Bool("reports", req.GenerateReports))

	res := &Result{Records: hits, Cached: len(hits)}

	switch {
	case len(needs) > 0:
		st := &pipeline.State{
			Items:    s.Resolver.Resolve(needs),
			Selected: needs,
		}
		if req.GenerateReports {
			st.Routing = pipeline.RoutingContinueToReport
		}
		st, err := s.Machine.Run(ctx, st, pipeline.StepCompileContext)
		if err != nil {
			return nil, fmt.Errorf("analyze issues: %w", err)
		}
		for _, rec := range st.Records {
			s.Cache.Put(ctx, rec.IssueURL, rec)
		}
		res.Records = append(res.Records, st.Records...)
		res.Reports = st.Reports

	case req.GenerateReports && len(hits) > 0:
		st := &pipeline.State{Records: append([]entity.Analysis(nil), hits...)}
		st, err := s.Machine.Run(ctx, st, pipeline.StepDraftReport)
		if err != nil {
			return nil, fmt.Errorf("draft reports: %w", err)
		}
		res.Reports = st.Reports
	}

	if res.Reports == nil {
		res.Reports = []entity.ReportRef{}
	}
	return res, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
