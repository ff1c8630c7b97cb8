package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sourcesage/internal/domain/entity"
	"sourcesage/internal/resilience/circuitbreaker"
	"sourcesage/internal/resilience/retry"
)

// Client generates text through an ordered chain of providers.
// It is safe for concurrent use; per-call state lives on the stack.
type Client struct {
	providers map[string]Provider
	policy    Policy
	metrics   MetricsRecorder
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy replaces the default decision table.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMetrics sets the metrics recorder. The default discards metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient registers providers by Name. A later provider with the same
// name replaces an earlier one.
func NewClient(providers []Provider, opts ...Option) *Client {
	c := &Client{
		providers: make(map[string]Provider, len(providers)),
		policy:    DefaultPolicy(),
		metrics:   NoopMetrics{},
		logger:    slog.Default(),
		sleep:     retry.Sleep,
		breakers:  make(map[string]*circuitbreaker.Breaker),
	}
	for _, p := range providers {
		c.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers lists the registered provider names.
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	return names
}

// Generate returns non-empty text from the first provider in the call's
// chain that produces it. Provider failures never escape: when the chain
// is exhausted the result is ErrNoResult. The only other errors are a
// configuration error (wrapping ErrMissingCredential and
// entity.ErrConfiguration) and cancellation of ctx.
func (c *Client) Generate(ctx context.Context, call Call) (string, error) {
	start := time.Now()
	text, outcome, err := c.generate(ctx, call)
	c.metrics.RecordCall(outcome, time.Since(start))
	return text, err
}

func (c *Client) generate(ctx context.Context, call Call) (string, string, error) {
	chain := call.Chain()
	req := call.request()
	skipped := make(map[string]bool)

	for i, id := range chain {
		p, ok := c.providers[id]
		if !ok {
			c.logger.WarnContext(ctx, "unknown provider in chain, skipping",
				slog.String("provider", id))
			continue
		}
		cred := credentialKey(p)
		if skipped[cred] {
			continue
		}

		text, kind, err := c.tryProvider(ctx, p, req)
		if err == nil {
			return text, "success", nil
		}

		rule := c.policy.Decide(kind)
		switch rule.Action {
		case ActionAbort:
			return "", "canceled", err
		case ActionAbortIfShared:
			if c.remainingShare(chain[i+1:], cred, skipped) {
				c.logger.ErrorContext(ctx, "credential missing for every remaining provider",
					slog.String("provider", p.Name()),
					slog.String("credential", p.Credential()))
				return "", "config_error", fmt.Errorf("%w: %s: %w", entity.ErrConfiguration, p.Credential(), err)
			}
			skipped[cred] = true
		case ActionSkipCredential:
			skipped[cred] = true
		}

		c.metrics.RecordFallback(p.Name(), kind)
		c.logger.WarnContext(ctx, "provider exhausted, moving to next",
			slog.String("provider", p.Name()),
			slog.String("kind", kind.String()),
			slog.String("action", rule.Action.String()),
			slog.Any("error", err))
	}

	if err := ctx.Err(); err != nil {
		return "", "canceled", err
	}
	return "", "no_result", ErrNoResult
}

// tryProvider runs the attempt loop for one provider. It returns the kind
// of the last failure when the provider could not produce text.
func (c *Client) tryProvider(ctx context.Context, p Provider, req Request) (string, FailureKind, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", FailureCanceled, err
		}

		text, err := c.invoke(ctx, p, req)
		if err == nil {
			c.metrics.RecordAttempt(p.Name(), "success")
			if attempt > 1 {
				c.logger.InfoContext(ctx, "provider succeeded after retry",
					slog.String("provider", p.Name()),
					slog.Int("attempt", attempt))
			}
			return text, 0, nil
		}

		kind := Classify(err)
		if ctx.Err() != nil {
			kind = FailureCanceled
			err = ctx.Err()
		}
		c.metrics.RecordAttempt(p.Name(), kind.String())

		rule := c.policy.Decide(kind)
		if rule.Action != ActionRetry || attempt >= c.policy.MaxAttempts {
			return "", kind, err
		}

		delay := rule.Backoff.Delay(attempt)
		c.logger.WarnContext(ctx, "provider attempt failed, retrying",
			slog.String("provider", p.Name()),
			slog.String("kind", kind.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.policy.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if err := c.sleep(ctx, delay); err != nil {
			return "", FailureCanceled, err
		}
	}
}

// invoke calls the provider through its circuit breaker. Only failures that
// indicate an unhealthy endpoint are counted by the breaker.
func (c *Client) invoke(ctx context.Context, p Provider, req Request) (string, error) {
	return circuitbreaker.Call(c.breaker(p.Name()), func() (string, error) {
		text, err := p.Generate(ctx, req)
		if err == nil && strings.TrimSpace(text) == "" {
			return "", ErrEmptyResponse
		}
		return text, err
	})
}

func (c *Client) breaker(name string) *circuitbreaker.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[name]
	if !ok {
		cb = circuitbreaker.New(circuitbreaker.Provider(name, healthyFailure))
		c.breakers[name] = cb
	}
	return cb
}

// remainingShare reports whether every provider left in the chain that has
// not been skipped authenticates with cred. An empty remainder counts as
// shared: nothing else could serve the call.
func (c *Client) remainingShare(rest []string, cred string, skipped map[string]bool) bool {
	for _, id := range rest {
		p, ok := c.providers[id]
		if !ok {
			continue
		}
		other := credentialKey(p)
		if skipped[other] {
			continue
		}
		if other != cred {
			return false
		}
	}
	return true
}

func credentialKey(p Provider) string {
	if cred := p.Credential(); cred != "" {
		return cred
	}
	return "provider:" + p.Name()
}

// IsConfigurationError reports whether err came from missing provider setup.
func IsConfigurationError(err error) bool {
	return errors.Is(err, entity.ErrConfiguration)
}
