// Package resilience groups the fault tolerance helpers used by the
// pipeline's outbound calls: circuit breakers guarding model providers,
// the GitHub API and the cache database, and retry with backoff.
//
//	cb := circuitbreaker.New(circuitbreaker.Provider("openrouter", nil))
//	text, err := circuitbreaker.Call(cb, func() (string, error) {
//	    return provider.Generate(ctx, req)
//	})
//
//	err := retry.WithBackoff(ctx, retry.GitHubConfig(), func() error {
//	    return search(ctx)
//	})
package resilience
