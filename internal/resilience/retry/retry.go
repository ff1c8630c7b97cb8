// Package retry provides retry logic with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff. 1.0 gives a fixed delay.
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64
}

// GitHubConfig is used for issue search and detail requests.
func GitHubConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// RateLimitConfig is the backoff applied to a model provider after a
// rate-limit response: 5s, 10s, 20s... without jitter.
func RateLimitConfig() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: 5 * time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}
}

// TransientConfig is the fixed 3s backoff applied to a model provider
// after an unclassified failure.
func TransientConfig() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: 3 * time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   1.0,
	}
}

// Delay returns the wait before the retry that follows the given attempt
// (1-based): InitialDelay * Multiplier^(attempt-1), capped at MaxDelay,
// plus jitter.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
			d = float64(c.MaxDelay)
			break
		}
	}
	delay := time.Duration(d)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return addJitter(delay, c.JitterFraction)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithBackoff calls fn until it succeeds, returns an error IsRetryable
// rejects, or MaxAttempts is spent. A server-supplied RetryAfter longer than
// the computed delay wins, up to MaxDelay.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				slog.InfoContext(ctx, "call succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		delay := cfg.Delay(attempt)
		var he *HTTPError
		if errors.As(err, &he) && he.RetryAfter > delay {
			delay = he.RetryAfter
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		slog.WarnContext(ctx, "call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if serr := Sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry canceled: %w", serr)
		}
	}
}

// IsRetryable reports network timeouts, refused or reset connections, 5xx,
// 408 and 429. Cancellation is never retried.
func IsRetryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return he.StatusCode >= 500 ||
		he.StatusCode == http.StatusTooManyRequests ||
		he.StatusCode == http.StatusRequestTimeout
}

// HTTPError carries an upstream status code so callers outside the HTTP
// client can classify the failure.
type HTTPError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server's requested wait, when it sent one.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- jitter does not need cryptographic randomness.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
