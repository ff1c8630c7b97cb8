package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
)

// KindFromStatus maps an HTTP status reported by a provider to a failure kind.
func KindFromStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusNotFound:
		return FailureNotFound
	default:
		return FailureTransient
	}
}

// Classify maps a provider error to a failure kind. Errors carrying no
// status fall back to message inspection, since some gateways only report
// rate limits and missing routes in the error text.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureTransient
	case errors.Is(err, ErrMissingCredential):
		return FailureMissingCredential
	case errors.Is(err, ErrEmptyResponse):
		return FailureEmpty
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return FailureUnavailable
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return KindFromStatus(pe.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return FailureRateLimited
	case strings.Contains(msg, "no endpoints"), strings.Contains(msg, "404"):
		return FailureNotFound
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"):
		return FailureAuth
	}
	return FailureTransient
}

// healthyFailure reports whether err leaves the provider's breaker
// untouched. Only failures suggesting the endpoint itself is unhealthy count.
func healthyFailure(err error) bool {
	kind := Classify(err)
	return kind != FailureTransient && kind != FailureRateLimited
}
