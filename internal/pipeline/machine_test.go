package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
	"sourcesage/internal/pipeline"
)

type harness struct {
	finder   *fakeFinder
	fetcher  *fakeFetcher
	gen      *fakeGenerator
	renderer *fakeRenderer
}

func newHarness(n int, gen *fakeGenerator) *harness {
	items := issues(n)
	return &harness{
		finder:   &fakeFinder{items: items},
		fetcher:  &fakeFetcher{details: details(items)},
		gen:      gen,
		renderer: &fakeRenderer{},
	}
}

func (h *harness) machine(opts ...pipeline.MachineOption) *pipeline.Machine {
	chain := pipeline.Chain{Primary: "cerebras", Fallbacks: []string{"openrouter"}}
	return pipeline.NewMachine([]pipeline.Stage{
		pipeline.DiscoverStage{Finder: h.finder},
		pipeline.ContextStage{Fetcher: h.fetcher},
		pipeline.PlanStage{Generator: h.gen, Chain: chain},
		pipeline.PromptStage{Generator: h.gen, Chain: chain},
		pipeline.ReportStage{Generator: h.gen, Renderer: h.renderer, Chain: chain},
	}, opts...)
}

/* ──────────────────────────────── end to end ──────────────────────────────── */

func TestMachine_EndToEnd_SelectSecondIssue(t *testing.T) {
	h := newHarness(3, scripted("MOCK PLAN", "MOCK PROMPT", "MOCK REPORT"))
	second := h.finder.items[1].URL
	fb := &scriptedFeedback{selected: []string{second}}

	st, err := h.machine(pipeline.WithFeedback(fb)).
		Run(context.Background(), pipeline.NewState([]string{"python"}), pipeline.StepDiscover)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StepTerminal, st.Step)
	assert.Len(t, st.Items, 3)
	require.Len(t, st.Records, 1)
	rec := st.Records[0]
	assert.Equal(t, second, rec.IssueURL)
	assert.NotEmpty(t, rec.Context)
	assert.Equal(t, "MOCK PLAN", rec.Plan)
	assert.Equal(t, "MOCK PROMPT", rec.GeneratedPrompt)
	assert.Empty(t, st.Reports)
	assert.Equal(t, []int{pipeline.DefaultDiscoverLimit}, h.finder.limits)
	assert.Equal(t, []string{h.finder.items[1].APIURL}, h.fetcher.calls)
}

func TestMachine_ContinueToReport(t *testing.T) {
	h := newHarness(2, scripted("PLAN", "PROMPT", "# Proposal"))
	st := &pipeline.State{
		Items:    h.finder.items,
		Selected: []string{h.finder.items[0].URL, h.finder.items[1].URL},
		Routing:  pipeline.RoutingContinueToReport,
	}

	st, err := h.machine().Run(context.Background(), st, pipeline.StepCompileContext)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StepTerminal, st.Step)
	assert.Equal(t, pipeline.RoutingStop, st.Routing, "routing is consumed")
	require.Len(t, st.Reports, 2)
	assert.Equal(t, "Issue 1", st.Reports[0].IssueTitle)
	assert.Equal(t, "Issue 2", st.Reports[1].IssueTitle)
	assert.Contains(t, st.Reports[0].DownloadURL, "/api/download/proposal_")
	assert.Equal(t, []string{"# Proposal", "# Proposal"}, h.renderer.texts)
	assert.Zero(t, h.finder.calls, "entering at compile context skips discovery")
}

func TestMachine_StopSkipsReport(t *testing.T) {
	h := newHarness(1, scripted("PLAN", "PROMPT", "REPORT"))
	st := &pipeline.State{Items: h.finder.items, Selected: []string{h.finder.items[0].URL}}

	st, err := h.machine().Run(context.Background(), st, pipeline.StepCompileContext)
	require.NoError(t, err)
	assert.Empty(t, st.Reports)
	assert.Empty(t, h.renderer.titles)
	assert.Equal(t, 2, h.gen.count(), "plan and prompt only")
}

func TestMachine_DraftReportOnly(t *testing.T) {
	h := newHarness(0, scripted("", "", "REPORT"))
	st := &pipeline.State{Records: []entity.Analysis{{
		IssueURL:        "https://github.com/o/r/issues/1",
		Context:         "**Issue Title:** Cached issue\n\n**Description:**\nbody",
		Plan:            "1. do it",
		GeneratedPrompt: "prompt",
	}}}

	st, err := h.machine().Run(context.Background(), st, pipeline.StepDraftReport)
	require.NoError(t, err)
	require.Len(t, st.Reports, 1)
	assert.Equal(t, "Cached issue", st.Reports[0].IssueTitle)
	assert.Equal(t, pipeline.StepTerminal, st.Step)
}

/* ──────────────────────────────── restarts ──────────────────────────────── */

func TestMachine_RestartDiscoveryTerminates(t *testing.T) {
	h := newHarness(2, scripted("PLAN", "PROMPT", "REPORT"))
	fb := &scriptedFeedback{
		selected: []string{h.finder.items[0].URL},
		routes:   []pipeline.Routing{pipeline.RoutingRestartDiscovery},
	}

	st, err := h.machine(pipeline.WithFeedback(fb)).
		Run(context.Background(), pipeline.NewState([]string{"go"}), pipeline.StepDiscover)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StepTerminal, st.Step)
	assert.Equal(t, 2, h.finder.calls)
	assert.Equal(t, 2, fb.selects)
	assert.Len(t, st.Records, 1, "a new cycle replaces the previous records")
}

func TestMachine_RestartLimitAborts(t *testing.T) {
	h := newHarness(1, scripted("PLAN", "PROMPT", "REPORT"))
	routes := make([]pipeline.Routing, 10)
	for i := range routes {
		routes[i] = pipeline.RoutingRestartDiscovery
	}
	fb := &scriptedFeedback{selected: []string{h.finder.items[0].URL}, routes: routes}

	st, err := h.machine(pipeline.WithFeedback(fb), pipeline.WithMaxRestarts(2)).
		Run(context.Background(), pipeline.NewState([]string{"go"}), pipeline.StepDiscover)

	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrAborted)
	assert.ErrorIs(t, err, pipeline.ErrRestartLimit)
	assert.Equal(t, pipeline.StepAborted, st.Step)
	assert.Equal(t, 3, h.finder.calls, "initial discovery plus two restarts")
}

/* ──────────────────────────────── aborts ──────────────────────────────── */

func TestMachine_EmptySkillsAbortsWithConfigurationError(t *testing.T) {
	h := newHarness(1, scripted("PLAN", "PROMPT", "REPORT"))

	st, err := h.machine().Run(context.Background(), pipeline.NewState(nil), pipeline.StepDiscover)

	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrAborted)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
	assert.Equal(t, pipeline.StepAborted, st.Step)
	assert.Contains(t, st.LastError, "no skills provided")
	assert.Zero(t, h.finder.calls)
}

func TestMachine_SearchFailureAborts(t *testing.T) {
	h := newHarness(1, scripted("PLAN", "PROMPT", "REPORT"))
	h.finder.err = errors.New("github: 502")

	st, err := h.machine().Run(context.Background(), pipeline.NewState([]string{"go"}), pipeline.StepDiscover)
	require.Error(t, err)
	assert.Equal(t, pipeline.StepAborted, st.Step)
	assert.Zero(t, h.gen.count())
}

func TestMachine_ConfigurationErrorFromGeneratorAborts(t *testing.T) {
	cfgErr := fmt.Errorf("%w: %w", entity.ErrConfiguration, llm.ErrMissingCredential)
	h := newHarness(1, failing(cfgErr))
	st := &pipeline.State{Items: h.finder.items, Selected: []string{h.finder.items[0].URL}}

	st, err := h.machine().Run(context.Background(), st, pipeline.StepCompileContext)

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
	assert.Equal(t, pipeline.StepAborted, st.Step)
	assert.Empty(t, st.Records[0].Plan, "no later stage ran")
}

func TestMachine_PlanWithoutContextViolatesInvariant(t *testing.T) {
	h := newHarness(0, scripted("PLAN", "PROMPT", "REPORT"))
	st := &pipeline.State{Records: []entity.Analysis{{IssueURL: "u"}}}

	_, err := h.machine().Run(context.Background(), st, pipeline.StepPlan)
	assert.ErrorIs(t, err, pipeline.ErrInvariant)
	assert.Zero(t, h.gen.count())
}

func TestMachine_RenderFailureAborts(t *testing.T) {
	h := newHarness(1, scripted("PLAN", "PROMPT", "REPORT"))
	h.renderer.err = errors.New("disk full")
	st := &pipeline.State{
		Items:    h.finder.items,
		Selected: []string{h.finder.items[0].URL},
		Routing:  pipeline.RoutingContinueToReport,
	}

	st, err := h.machine().Run(context.Background(), st, pipeline.StepCompileContext)
	require.Error(t, err)
	assert.Equal(t, pipeline.StepAborted, st.Step)
	assert.Contains(t, st.LastError, "disk full")
}

func TestMachine_UnregisteredStageAborts(t *testing.T) {
	m := pipeline.NewMachine(nil)
	st, err := m.Run(context.Background(), &pipeline.State{}, pipeline.StepPlan)
	assert.ErrorIs(t, err, pipeline.ErrAborted)
	assert.Equal(t, pipeline.StepAborted, st.Step)
}

/* ──────────────────────────────── degradation ──────────────────────────────── */

func TestMachine_NoResultUsesTemplates(t *testing.T) {
	h := newHarness(1, failing(llm.ErrNoResult))
	st := &pipeline.State{
		Items:    h.finder.items,
		Selected: []string{h.finder.items[0].URL},
		Routing:  pipeline.RoutingContinueToReport,
	}

	st, err := h.machine().Run(context.Background(), st, pipeline.StepCompileContext)
	require.NoError(t, err)

	rec := st.Records[0]
	assert.Equal(t, pipeline.PlanUnavailable, rec.Plan)
	assert.Contains(t, rec.GeneratedPrompt, "**Issue Context:**")
	assert.Contains(t, rec.GeneratedPrompt, "Body of Issue 1")
	assert.Contains(t, rec.GeneratedPrompt, pipeline.PlanUnavailable)
	require.Len(t, h.renderer.texts, 1)
	assert.True(t, strings.HasPrefix(h.renderer.texts[0], "# Google Summer of Code Project Proposal"))
	assert.Contains(t, h.renderer.texts[0], "## Implementation Timeline")
}

/* ──────────────────────────────── parallelism ──────────────────────────────── */

func TestMachine_ParallelStagesPreserveOrder(t *testing.T) {
	gen := &fakeGenerator{fn: func(c llm.Call) (string, error) {
		for i := 1; i <= 6; i++ {
			if strings.Contains(c.Prompt, fmt.Sprintf("Body of Issue %d\n", i)) {
				return fmt.Sprintf("answer %d", i), nil
			}
		}
		return "", errors.New("unexpected prompt")
	}}
	h := newHarness(6, gen)
	urls := make([]string, 0, 6)
	for _, it := range h.finder.items {
		urls = append(urls, it.URL)
	}
	chain := pipeline.Chain{Primary: "a"}
	m := pipeline.NewMachine([]pipeline.Stage{
		pipeline.ContextStage{Fetcher: h.fetcher},
		pipeline.PlanStage{Generator: gen, Chain: chain, Parallelism: 3},
		pipeline.PromptStage{Generator: gen, Chain: chain, Parallelism: 3},
	})

	st, err := m.Run(context.Background(), &pipeline.State{Items: h.finder.items, Selected: urls}, pipeline.StepCompileContext)
	require.NoError(t, err)
	require.Len(t, st.Records, 6)
	for i, rec := range st.Records {
		assert.Equal(t, urls[i], rec.IssueURL)
		assert.Equal(t, fmt.Sprintf("answer %d", i+1), rec.Plan)
		assert.Equal(t, fmt.Sprintf("answer %d", i+1), rec.GeneratedPrompt)
	}
}

/* ──────────────────────────────── progress ──────────────────────────────── */

func TestMachine_ObserverReceivesProgress(t *testing.T) {
	h := newHarness(1, scripted("PLAN", "PROMPT", "REPORT"))
	var events []pipeline.Event
	m := h.machine().Observe(func(e pipeline.Event) { events = append(events, e) })
	st := &pipeline.State{
		Items:    h.finder.items,
		Selected: []string{h.finder.items[0].URL},
		Routing:  pipeline.RoutingContinueToReport,
	}

	_, err := m.Run(context.Background(), st, pipeline.StepCompileContext)
	require.NoError(t, err)

	steps := make([]pipeline.Step, 0, len(events))
	for _, e := range events {
		steps = append(steps, e.Step)
	}
	assert.Equal(t, []pipeline.Step{
		pipeline.StepCompileContext,
		pipeline.StepPlan,
		pipeline.StepPrompt,
		pipeline.StepDraftReport,
		pipeline.StepTerminal,
	}, steps)
	assert.Equal(t, 100, events[len(events)-1].Percent)
}
