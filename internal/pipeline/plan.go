package pipeline

import (
	"context"
	"fmt"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
	"sourcesage/internal/observability/metrics"
)

const (
	planMaxTokens   = 800
	planTemperature = 0.6
)

// PlanStage asks the model for a numbered solution plan per record.
type PlanStage struct {
	Generator   llm.Generator
	Chain       Chain
	Parallelism int
}

func (PlanStage) Name() Step { return StepPlan }

func (s PlanStage) Execute(ctx context.Context, st *State) error {
	return forEachRecord(ctx, st.Records, s.Parallelism, func(ctx context.Context, rec *entity.Analysis) error {
		if rec.Context == "" {
			return fmt.Errorf("%w: %s has no context before planning", ErrInvariant, rec.IssueURL)
		}
		plan, ok, err := generate(ctx, s.Generator, s.Chain.call(planPrompt(rec.Context), planMaxTokens, planTemperature))
		if err != nil {
			return err
		}
		if !ok {
			metrics.RecordDegradedOutput(StepPlan.String())
			plan = PlanUnavailable
		}
		return rec.SetPlan(plan)
	})
}
