// Package circuitbreaker guards the model providers, the GitHub API and the
// cache database with github.com/sony/gobreaker.
package circuitbreaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"sourcesage/internal/observability/metrics"
)

// Policy describes when a breaker opens and how it recovers.
type Policy struct {
	Name string

	// Probes is the number of calls let through while half-open.
	Probes uint32

	// Window clears the closed-state counts once it elapses. Zero keeps
	// them until the next state change.
	Window time.Duration

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// TripRatio opens the breaker once failures/requests reaches it,
	// after at least MinSamples requests in the window.
	TripRatio  float64
	MinSamples uint32

	// Ignore reports errors that are returned to the caller but do not
	// count as failures. gobreaker records them as successes, so they
	// dilute the failure ratio within a window. Nil counts every error.
	Ignore func(error) bool
}

// Provider is the policy for one model provider. ignore receives every
// provider error; a provider that rejects a bad request is still healthy.
func Provider(name string, ignore func(error) bool) Policy {
	return Policy{
		Name:       "llm-" + name,
		Probes:     2,
		Window:     time.Minute,
		Cooldown:   45 * time.Second,
		TripRatio:  0.8,
		MinSamples: 5,
		Ignore:     ignore,
	}
}

// GitHub is the policy for the issue search and detail endpoints.
func GitHub(ignore func(error) bool) Policy {
	return Policy{
		Name:       "github-api",
		Probes:     3,
		Window:     time.Minute,
		Cooldown:   2 * time.Minute,
		TripRatio:  0.7,
		MinSamples: 10,
		Ignore:     ignore,
	}
}

// Breaker is a named gobreaker.CircuitBreaker that reports its state
// changes to the log and to Prometheus.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

func New(p Policy) *Breaker {
	settings := gobreaker.Settings{
		Name:        p.Name,
		MaxRequests: p.Probes,
		Interval:    p.Window,
		Timeout:     p.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < p.MinSamples {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= p.TripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, to.String(), int(to))
			level := slog.LevelWarn
			if to == gobreaker.StateClosed {
				level = slog.LevelInfo
			}
			slog.Log(context.Background(), level, "circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	if p.Ignore != nil {
		ignore := p.Ignore
		settings.IsSuccessful = func(err error) bool {
			return err == nil || ignore(err)
		}
	}
	metrics.RecordBreakerState(p.Name, gobreaker.StateClosed.String(), int(gobreaker.StateClosed))
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), name: p.Name}
}

// Do runs fn unless the breaker is open, in which case it returns
// gobreaker.ErrOpenState (or ErrTooManyRequests while half-open) without
// calling fn.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Call is Do for functions that produce a value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool { return b.cb.State() == gobreaker.StateOpen }
