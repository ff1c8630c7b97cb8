package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sourcesage/internal/llm"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint:
// Cerebras, OpenRouter or OpenAI itself.
type OpenAI struct {
	settings Settings
	client   *openai.Client
}

// NewOpenAI builds the adapter. A missing API key is reported on Generate.
func NewOpenAI(s Settings) *OpenAI {
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	cfg.HTTPClient = s.httpClient()
	return &OpenAI{settings: s, client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAI) Name() string       { return o.settings.Name }
func (o *OpenAI) Credential() string { return o.settings.CredentialName }

func (o *OpenAI) Generate(ctx context.Context, req llm.Request) (string, error) {
	if o.settings.APIKey == "" {
		return "", llm.ErrMissingCredential
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.settings.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		}},
	})
	if err != nil {
		slog.DebugContext(ctx, "chat completion failed",
			slog.String("provider", o.settings.Name),
			slog.String("model", o.settings.Model),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return "", o.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

func (o *OpenAI) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(o.settings.Name, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(o.settings.Name, reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("%s: %w", o.settings.Name, err)
}
