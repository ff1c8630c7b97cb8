package llm

import (
	"time"

	"sourcesage/internal/resilience/retry"
)

// FailureKind classifies a single failed provider attempt.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureRateLimited
	FailureAuth
	FailureNotFound
	FailureUnavailable
	FailureEmpty
	FailureMissingCredential
	FailureCanceled
)

var failureKindNames = map[FailureKind]string{
	FailureTransient:         "transient",
	FailureRateLimited:       "rate_limited",
	FailureAuth:              "auth",
	FailureNotFound:          "not_found",
	FailureUnavailable:       "unavailable",
	FailureEmpty:             "empty",
	FailureMissingCredential: "missing_credential",
	FailureCanceled:          "canceled",
}

func (k FailureKind) String() string {
	if s, ok := failureKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Action is what the client does after a failed attempt.
type Action int

const (
	// ActionRetry retries the same provider after the rule's backoff, then
	// moves on once the attempt budget is spent.
	ActionRetry Action = iota
	// ActionNextProvider moves to the next provider immediately.
	ActionNextProvider
	// ActionSkipCredential moves on and skips every remaining provider that
	// shares the failing provider's credential.
	ActionSkipCredential
	// ActionAbortIfShared aborts the call with a configuration error when all
	// remaining providers share the failing credential, and otherwise behaves
	// like ActionSkipCredential.
	ActionAbortIfShared
	// ActionAbort stops the call.
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionNextProvider:
		return "next_provider"
	case ActionSkipCredential:
		return "skip_credential"
	case ActionAbortIfShared:
		return "abort_if_shared"
	case ActionAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Rule is one row of the decision table.
type Rule struct {
	Action  Action
	Backoff retry.Config
}

// Policy is the decision table mapping failure kinds to actions, plus the
// per-provider attempt budget.
type Policy struct {
	MaxAttempts int
	Rules       map[FailureKind]Rule
}

// DefaultPolicy returns the standard table: rate limits back off
// exponentially from 5s, unclassified failures wait a fixed 3s, and each
// provider gets two attempts.
func DefaultPolicy() Policy {
	return NewPolicy(2, retry.RateLimitConfig().InitialDelay, retry.TransientConfig().InitialDelay)
}

// NewPolicy builds the standard table with custom attempts and base delays.
func NewPolicy(maxAttempts int, rateLimitBase, transientDelay time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	rateLimit := retry.RateLimitConfig()
	rateLimit.MaxAttempts = maxAttempts
	rateLimit.InitialDelay = rateLimitBase

	transient := retry.TransientConfig()
	transient.MaxAttempts = maxAttempts
	transient.InitialDelay = transientDelay
	transient.MaxDelay = transientDelay

	return Policy{
		MaxAttempts: maxAttempts,
		Rules: map[FailureKind]Rule{
			FailureRateLimited:       {Action: ActionRetry, Backoff: rateLimit},
			FailureTransient:         {Action: ActionRetry, Backoff: transient},
			FailureNotFound:          {Action: ActionNextProvider},
			FailureUnavailable:       {Action: ActionNextProvider},
			FailureEmpty:             {Action: ActionNextProvider},
			FailureAuth:              {Action: ActionSkipCredential},
			FailureMissingCredential: {Action: ActionAbortIfShared},
			FailureCanceled:          {Action: ActionAbort},
		},
	}
}

// Decide returns the rule for kind. Kinds missing from the table are
// handled like transient failures.
func (p Policy) Decide(kind FailureKind) Rule {
	if r, ok := p.Rules[kind]; ok {
		return r
	}
	if r, ok := p.Rules[FailureTransient]; ok {
		return r
	}
	return Rule{Action: ActionNextProvider}
}
