package pipeline

import (
	"context"
	"fmt"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
	"sourcesage/internal/observability/metrics"
)

const (
	promptMaxTokens   = 700
	promptTemperature = 0.7
)

// PromptStage derives a coding-assistant prompt from context and plan.
type PromptStage struct {
	Generator   llm.Generator
	Chain       Chain
	Parallelism int
}

func (PromptStage) Name() Step { return StepPrompt }

func (s PromptStage) Execute(ctx context.Context, st *State) error {
	return forEachRecord(ctx, st.Records, s.Parallelism, func(ctx context.Context, rec *entity.Analysis) error {
		if rec.Context == "" || rec.Plan == "" {
			return fmt.Errorf("%w: %s has no plan before prompt generation", ErrInvariant, rec.IssueURL)
		}
		prompt, ok, err := generate(ctx, s.Generator,
			s.Chain.call(metaPrompt(rec.Context, rec.Plan), promptMaxTokens, promptTemperature))
		if err != nil {
			return err
		}
		if !ok {
			metrics.RecordDegradedOutput(StepPrompt.String())
			prompt = fallbackPrompt(rec.Context, rec.Plan)
		}
		return rec.SetGeneratedPrompt(prompt)
	})
}
