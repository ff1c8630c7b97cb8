package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
	"sourcesage/internal/pipeline"
)

func TestContextStage_SkipsUnknownIdentifiers(t *testing.T) {
	items := issues(2)
	fetcher := &fakeFetcher{details: details(items)}
	st := &pipeline.State{
		Items:    items,
		Selected: []string{"https://github.com/other/repo/issues/9", items[1].URL},
	}

	err := pipeline.ContextStage{Fetcher: fetcher}.Execute(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, st.Records, 1)
	assert.Equal(t, items[1].URL, st.Records[0].IssueURL)
	assert.Equal(t, []string{items[1].APIURL}, fetcher.calls)
}

func TestContextStage_CompilesContext(t *testing.T) {
	items := issues(1)
	fetcher := &fakeFetcher{details: map[string]entity.IssueDetail{
		items[0].APIURL: {
			Title:    "Fix typo in README",
			Body:     "The word 'teh' appears twice.",
			Comments: []string{"c1", "c2", "c3", "c4", "c5"},
		},
	}}
	st := &pipeline.State{Items: items, Selected: []string{items[0].URL, items[0].URL}}

	require.NoError(t, pipeline.ContextStage{Fetcher: fetcher}.Execute(context.Background(), st))

	require.Len(t, st.Records, 1, "duplicate selections yield one record")
	want := "**Issue Title:** Fix typo in README\n\n" +
		"**Description:**\nThe word 'teh' appears twice.\n\n" +
		"**Recent Comments:**\nc3\nc4\nc5"
	assert.Equal(t, want, st.Records[0].Context, "keeps the newest comments")
}

func TestContextStage_DegradedDetailStillProducesRecord(t *testing.T) {
	items := issues(1)
	st := &pipeline.State{Items: items, Selected: []string{items[0].URL}}

	err := pipeline.ContextStage{Fetcher: &fakeFetcher{}}.Execute(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, st.Records, 1)
	assert.Equal(t, "**Issue Title:** \n\n**Description:**\n\n\n**Recent Comments:**", st.Records[0].Context)
}

func TestPlanStage_CallShape(t *testing.T) {
	gen := scripted("PLAN", "", "")
	long := "**Issue Title:** x\n" + strings.Repeat("é", 3000)
	st := &pipeline.State{Records: []entity.Analysis{{IssueURL: "u", Context: long}}}
	chain := pipeline.Chain{Primary: "cerebras", Fallbacks: []string{"gemini"}}

	require.NoError(t, pipeline.PlanStage{Generator: gen, Chain: chain}.Execute(context.Background(), st))

	require.Len(t, gen.calls, 1)
	call := gen.calls[0]
	assert.Equal(t, 800, call.MaxTokens)
	assert.InDelta(t, 0.6, call.Temperature, 1e-9)
	assert.Equal(t, "cerebras", call.Primary)
	assert.Equal(t, []string{"gemini"}, call.Fallbacks)
	assert.Equal(t, 1500, strings.Count(call.Prompt, "é")+len([]rune("**Issue Title:** x\n")))
}

func TestPlanStage_WriteOnce(t *testing.T) {
	st := &pipeline.State{Records: []entity.Analysis{{IssueURL: "u", Context: "c", Plan: "already"}}}

	err := pipeline.PlanStage{Generator: scripted("PLAN", "", ""), Chain: pipeline.Chain{Primary: "a"}}.
		Execute(context.Background(), st)
	assert.ErrorIs(t, err, entity.ErrFieldAlreadySet)
	assert.Equal(t, "already", st.Records[0].Plan)
}

func TestPromptStage_RequiresPlan(t *testing.T) {
	st := &pipeline.State{Records: []entity.Analysis{{IssueURL: "u", Context: "c"}}}

	err := pipeline.PromptStage{Generator: scripted("", "P", ""), Chain: pipeline.Chain{Primary: "a"}}.
		Execute(context.Background(), st)
	assert.ErrorIs(t, err, pipeline.ErrInvariant)
}

func TestPromptStage_FallbackIsDeterministic(t *testing.T) {
	run := func() string {
		st := &pipeline.State{Records: []entity.Analysis{{IssueURL: "u", Context: "ctx", Plan: "plan"}}}
		err := pipeline.PromptStage{Generator: failing(llm.ErrNoResult), Chain: pipeline.Chain{Primary: "a"}}.
			Execute(context.Background(), st)
		require.NoError(t, err)
		return st.Records[0].GeneratedPrompt
	}
	first := run()
	assert.Equal(t, first, run())
	assert.Contains(t, first, "ctx")
	assert.Contains(t, first, "plan")
}

func TestReportStage_TitleTruncatedTo60Runes(t *testing.T) {
	title := strings.Repeat("ü", 80)
	renderer := &fakeRenderer{}
	st := &pipeline.State{Records: []entity.Analysis{{
		IssueURL: "u",
		Context:  "**Issue Title:** " + title + "\n\nbody",
		Plan:     "plan",
	}}}

	err := pipeline.ReportStage{Generator: scripted("", "", "R"), Renderer: renderer, Chain: pipeline.Chain{Primary: "a"}}.
		Execute(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, st.Reports, 1)
	assert.Equal(t, strings.Repeat("ü", 60), st.Reports[0].IssueTitle)
}

func TestRouter_Next(t *testing.T) {
	tests := []struct {
		routing pipeline.Routing
		want    pipeline.Step
	}{
		{pipeline.RoutingStop, pipeline.StepTerminal},
		{pipeline.RoutingContinueToReport, pipeline.StepDraftReport},
		{pipeline.RoutingRestartDiscovery, pipeline.StepDiscover},
		{pipeline.Routing(42), pipeline.StepTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.routing.String(), func(t *testing.T) {
			st := &pipeline.State{Routing: tt.routing}
			assert.Equal(t, tt.want, pipeline.Router{}.Next(st))
			assert.Equal(t, pipeline.RoutingStop, st.Routing)
		})
	}
}

func TestParseRouting(t *testing.T) {
	assert.Equal(t, pipeline.RoutingContinueToReport, pipeline.ParseRouting("draft_report"))
	assert.Equal(t, pipeline.RoutingRestartDiscovery, pipeline.ParseRouting("find_more"))
	assert.Equal(t, pipeline.RoutingStop, pipeline.ParseRouting("end"))
	assert.Equal(t, pipeline.RoutingStop, pipeline.ParseRouting(""))
}
