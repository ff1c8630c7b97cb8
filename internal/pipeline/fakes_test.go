package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
	"sourcesage/internal/pipeline"
)

type fakeFinder struct {
	mu     sync.Mutex
	items  []entity.Issue
	err    error
	calls  int
	limits []int
}

func (f *fakeFinder) Search(_ context.Context, _ []string, limit int) ([]entity.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	return f.items, f.err
}

type fakeFetcher struct {
	mu      sync.Mutex
	details map[string]entity.IssueDetail
	calls   []string
}

func (f *fakeFetcher) FetchDetail(_ context.Context, apiURL string) entity.IssueDetail {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiURL)
	return f.details[apiURL]
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []llm.Call
	fn    func(llm.Call) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, call llm.Call) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
	return g.fn(call)
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// scripted answers by the kind of prompt it receives.
func scripted(plan, prompt, report string) *fakeGenerator {
	return &fakeGenerator{fn: func(c llm.Call) (string, error) {
		switch {
		case strings.Contains(c.Prompt, "prompt engineer"):
			return prompt, nil
		case strings.Contains(c.Prompt, "GSOC"):
			return report, nil
		default:
			return plan, nil
		}
	}}
}

func failing(err error) *fakeGenerator {
	return &fakeGenerator{fn: func(llm.Call) (string, error) { return "", err }}
}

type fakeRenderer struct {
	mu     sync.Mutex
	titles []string
	texts  []string
	err    error
}

func (r *fakeRenderer) Render(_ context.Context, title, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.titles = append(r.titles, title)
	r.texts = append(r.texts, text)
	return fmt.Sprintf("http://localhost:8000/api/download/proposal_%08d.md", len(r.titles)), nil
}

// scriptedFeedback selects fixed URLs and replays routing choices; once the
// script runs out it stops.
type scriptedFeedback struct {
	selected []string
	routes   []pipeline.Routing
	selects  int
}

func (f *scriptedFeedback) Select(context.Context, *pipeline.State) ([]string, error) {
	f.selects++
	return f.selected, nil
}

func (f *scriptedFeedback) Route(context.Context, *pipeline.State) (pipeline.Routing, error) {
	if len(f.routes) == 0 {
		return pipeline.RoutingStop, nil
	}
	r := f.routes[0]
	f.routes = f.routes[1:]
	return r, nil
}

func issues(n int) []entity.Issue {
	out := make([]entity.Issue, n)
	for i := range out {
		out[i] = entity.Issue{
			URL:    fmt.Sprintf("https://github.com/acme/widgets/issues/%d", i+1),
			APIURL: fmt.Sprintf("https://api.github.com/repos/acme/widgets/issues/%d", i+1),
			Title:  fmt.Sprintf("Issue %d", i+1),
			Repo:   "acme/widgets",
			Labels: []string{"good first issue"},
		}
	}
	return out
}

func details(items []entity.Issue) map[string]entity.IssueDetail {
	out := make(map[string]entity.IssueDetail, len(items))
	for _, it := range items {
		out[it.APIURL] = entity.IssueDetail{
			Title:    it.Title,
			Body:     "Body of " + it.Title,
			Comments: []string{"first", "second"},
		}
	}
	return out
}
