// Package resilience holds the circuit breaker and retry building blocks
// that keep a pipeline run progressing when individual upstreams misbehave.
//
//   - circuitbreaker: breakers for external calls (Claude, OpenAI, feed and
//     article hosts, Postgres)
//   - retry: exponential backoff with jitter and shared error
//     classification (timeouts retry, certificate failures do not)
//
// The two compose with retry on the outside:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	policy := retry.FeedFetchPolicy()
//	policy.OnRetry = retry.LogRetries(logger, "feed_fetch")
//	err := retry.Do(ctx, policy, func() error {
//	    _, err := cb.Execute(func() (interface{}, error) {
//	        return fetchFeed(ctx, url)
//	    })
//	    return err
//	})
package resilience
