package chainz

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/pipz"
)

// Identities of the connectors Options add around a link's provider call.
var (
	RetryID          = pipz.NewIdentity("retry", "Retries failed provider calls")
	BackoffID        = pipz.NewIdentity("backoff", "Retries failed provider calls with exponential backoff")
	TimeoutID        = pipz.NewIdentity("timeout", "Bounds the duration of a provider call")
	CircuitBreakerID = pipz.NewIdentity("circuit-breaker", "Stops calling a provider after repeated failures")
	RateLimitID      = pipz.NewIdentity("rate-limit", "Limits the rate of provider calls")
	ErrorHandlerID   = pipz.NewIdentity("error-handler", "Observes provider call failures")
	FallbackID       = pipz.NewIdentity("with-fallback", "Sends the request to a fallback link on failure")
	DebugID          = pipz.NewIdentity("debug", "Prints prompts and responses")
)

// Option modifies a link's pipeline for reliability features.
// None are applied by default: a bare link makes exactly one provider call per invocation.
type Option func(pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest]

// WithRetry adds retry logic to the pipeline.
// Failed requests are retried up to maxAttempts times.
func WithRetry(maxAttempts int) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewRetry(RetryID, pipeline, maxAttempts)
	}
}

// WithBackoff adds retry logic with exponential backoff to the pipeline.
// The delay starts at baseDelay and doubles after each failure.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewBackoff(BackoffID, pipeline, maxAttempts, baseDelay)
	}
}

// WithTimeout adds timeout protection to the pipeline.
// Operations exceeding this duration will be canceled.
func WithTimeout(duration time.Duration) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewTimeout(TimeoutID, pipeline, duration)
	}
}

// WithCircuitBreaker adds circuit breaker protection to the pipeline.
// After 'failures' consecutive failures, the circuit opens for 'recovery' duration.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewCircuitBreaker(CircuitBreakerID, pipeline, failures, recovery)
	}
}

// WithRateLimit adds rate limiting to the pipeline.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewRateLimiter(RateLimitID, rps, burst, pipeline)
	}
}

// WithErrorHandler adds error handling to the pipeline.
// The handler receives the pipz error context and can log or alert as needed.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*LinkRequest]]) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewHandle(ErrorHandlerID, pipeline, handler)
	}
}

// PipelineProvider is implemented by types that expose a link pipeline for composition.
type PipelineProvider interface {
	GetPipeline() pipz.Chainable[*LinkRequest]
}

// WithFallback adds a fallback link for resilience.
// If the primary provider fails, the fallback's pipeline receives the same request.
func WithFallback(fallback PipelineProvider) Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.NewFallback(FallbackID, pipeline, fallback.GetPipeline())
	}
}

// WithDebug prints the prompt and raw response around each provider call.
func WithDebug() Option {
	return func(pipeline pipz.Chainable[*LinkRequest]) pipz.Chainable[*LinkRequest] {
		return pipz.Apply(DebugID, func(ctx context.Context, req *LinkRequest) (*LinkRequest, error) {
			fmt.Println("\n=== DEBUG: Prompt ===")
			fmt.Println(req.Prompt)
			fmt.Println("=====================")

			processed, err := pipeline.Process(ctx, req)
			if err != nil {
				fmt.Printf("\n=== DEBUG: Error ===\n%v\n==================\n\n", err)
				return processed, err
			}

			fmt.Println("\n=== DEBUG: Raw Response ===")
			fmt.Println(processed.Response)
			fmt.Println("===========================")

			return processed, nil
		})
	}
}
