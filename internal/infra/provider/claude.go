package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"sourcesage/internal/llm"
)

// Claude is the Anthropic Messages API adapter.
type Claude struct {
	settings Settings
	client   anthropic.Client
}

// NewClaude builds the adapter. SDK-level retries are disabled; the call
// client owns retry decisions.
func NewClaude(s Settings) *Claude {
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithHTTPClient(s.httpClient()),
		option.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return &Claude{settings: s, client: anthropic.NewClient(opts...)}
}

func (c *Claude) Name() string       { return c.settings.Name }
func (c *Claude) Credential() string { return c.settings.CredentialName }

func (c *Claude) Generate(ctx context.Context, req llm.Request) (string, error) {
	if c.settings.APIKey == "" {
		return "", llm.ErrMissingCredential
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.settings.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError(c.settings.Name, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("%s: %w", c.settings.Name, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", llm.ErrEmptyResponse
	}
	return out, nil
}
