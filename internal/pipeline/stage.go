package pipeline

import (
	"context"
	"errors"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/llm"
)

var (
	// ErrAborted wraps the error of the stage that stopped a run.
	ErrAborted = errors.New("pipeline aborted")

	// ErrInvariant reports a record reaching a stage without the fields the
	// stage consumes. It indicates a wiring bug, not bad input.
	ErrInvariant = errors.New("pipeline invariant violated")

	// ErrRestartLimit is returned when discovery was re-entered too often.
	ErrRestartLimit = errors.New("restart limit exceeded")
)

// Stage transforms the state in place.
type Stage interface {
	Name() Step
	Execute(ctx context.Context, st *State) error
}

// IssueFinder discovers candidate issues. It must not block indefinitely.
type IssueFinder interface {
	Search(ctx context.Context, skills []string, limit int) ([]entity.Issue, error)
}

// DetailFetcher loads an issue body and recent comments. On failure it
// returns an empty detail instead of an error.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, apiURL string) entity.IssueDetail
}

// Renderer turns proposal text into a downloadable document.
type Renderer interface {
	Render(ctx context.Context, title, text string) (downloadURL string, err error)
}

// Chain selects the providers a stage calls, primary first.
type Chain struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

func (c Chain) call(prompt string, maxTokens int, temperature float64) llm.Call {
	return llm.Call{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Primary:     c.Primary,
		Fallbacks:   c.Fallbacks,
	}
}

// generate runs call and reports whether the text came from a provider.
// ErrNoResult is absorbed; configuration and cancellation errors are not.
func generate(ctx context.Context, gen llm.Generator, call llm.Call) (string, bool, error) {
	text, err := gen.Generate(ctx, call)
	switch {
	case err == nil:
		return text, true, nil
	case errors.Is(err, llm.ErrNoResult):
		return "", false, nil
	default:
		return "", false, err
	}
}
