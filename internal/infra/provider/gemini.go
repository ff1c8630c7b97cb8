package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"sourcesage/internal/llm"
)

// Gemini is the Google Gemini API adapter.
type Gemini struct {
	settings Settings
	client   *genai.Client
}

// NewGemini builds the adapter. Without an API key no SDK client is
// created and Generate reports llm.ErrMissingCredential.
func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	g := &Gemini{settings: s}
	if s.APIKey == "" {
		return g, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     s.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient(),
	}
	if s.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client %s: %w", s.Name, err)
	}
	g.client = cli
	return g, nil
}

func (g *Gemini) Name() string       { return g.settings.Name }
func (g *Gemini) Credential() string { return g.settings.CredentialName }

func (g *Gemini) Generate(ctx context.Context, req llm.Request) (string, error) {
	if g.client == nil {
		return "", llm.ErrMissingCredential
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.settings.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(req.MaxTokens),
			Temperature:     genai.Ptr(float32(req.Temperature)),
		},
	)
	if err != nil {
		return "", g.wrapError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", llm.ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}

func (g *Gemini) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(g.settings.Name, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return statusError(g.settings.Name, apiErrPtr.Code, err)
	}
	return fmt.Errorf("%s: %w", g.settings.Name, err)
}
