// Package llm is the resilient text-generation client used by the pipeline.
// A Call names a primary provider and an ordered fallback chain; the Client
// walks that chain, retrying and backing off per failure kind according to
// a Policy, and returns either generated text or ErrNoResult.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoResult is returned when every provider in the chain was exhausted.
	ErrNoResult = errors.New("no result from any provider")

	// ErrEmptyResponse is returned by providers that answered with no text.
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrMissingCredential is returned by providers whose API key is not configured.
	// Providers must return it without making a network call.
	ErrMissingCredential = errors.New("provider credential not configured")
)

// Request is the provider-facing part of a Call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider is one text-generation endpoint bound to a single model.
type Provider interface {
	// Name is the registry identifier used in Call.Primary and Call.Fallbacks.
	Name() string

	// Credential names the secret the provider authenticates with, e.g. the
	// environment variable holding its API key. Providers sharing a
	// credential are skipped together after an authentication failure.
	Credential() string

	Generate(ctx context.Context, req Request) (string, error)
}

// Call describes one generation request and the providers allowed to serve it.
type Call struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Primary     string
	Fallbacks   []string
}

// Chain returns the providers to try, primary first, without duplicates.
func (c Call) Chain() []string {
	chain := make([]string, 0, 1+len(c.Fallbacks))
	seen := make(map[string]bool, 1+len(c.Fallbacks))
	for _, id := range append([]string{c.Primary}, c.Fallbacks...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		chain = append(chain, id)
	}
	return chain
}

func (c Call) request() Request {
	return Request{Prompt: c.Prompt, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

// ProviderError carries the HTTP status a provider SDK reported.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Generator is the interface pipeline stages depend on.
type Generator interface {
	Generate(ctx context.Context, call Call) (string, error)
}
