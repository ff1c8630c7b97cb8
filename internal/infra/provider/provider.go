// Package provider adapts the model SDKs to llm.Provider. Each adapter is
// bound to one model and reports HTTP statuses as *llm.ProviderError so the
// call client can classify failures.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sourcesage/internal/llm"
)

// Kinds understood by Build.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
)

const defaultTimeout = 60 * time.Second

// Settings describes one registry entry.
type Settings struct {
	// Name is the identifier used in fallback chains, e.g. "openrouter-gemini-flash".
	Name string
	// Kind selects the SDK: openai (any OpenAI-compatible endpoint), anthropic or gemini.
	Kind    string
	Model   string
	BaseURL string
	// APIKey is the resolved secret. Empty means not configured.
	APIKey string
	// CredentialName identifies the secret, normally its environment variable.
	CredentialName string
	// Headers are added to every request (OpenRouter attribution headers).
	Headers map[string]string
	Timeout time.Duration
}

func (s Settings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

func (s Settings) httpClient() *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	if len(s.Headers) > 0 {
		rt = &headerTransport{base: rt, headers: s.Headers}
	}
	return &http.Client{Timeout: s.timeout(), Transport: rt}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// Build constructs providers for every settings entry.
func Build(ctx context.Context, settings []Settings) ([]llm.Provider, error) {
	out := make([]llm.Provider, 0, len(settings))
	for _, s := range settings {
		p, err := New(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// New constructs the adapter for a single entry.
func New(ctx context.Context, s Settings) (llm.Provider, error) {
	if s.Name == "" || s.Model == "" {
		return nil, fmt.Errorf("provider %q: name and model are required", s.Name)
	}
	switch s.Kind {
	case KindOpenAI, "":
		return NewOpenAI(s), nil
	case KindAnthropic:
		return NewClaude(s), nil
	case KindGemini:
		return NewGemini(ctx, s)
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", s.Name, s.Kind)
	}
}

func statusError(provider string, status int, err error) error {
	return &llm.ProviderError{Provider: provider, StatusCode: status, Err: err}
}
