package circuitBreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerOption is a functional option for configuring the circuit breaker.
type CircuitBreakerOption func(*gobreaker.Settings)

// WithName sets the name of the circuit breaker.
func WithName(name string) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.Name = name
	}
}

// WithTimeout sets how long the breaker stays open before probing again.
func WithTimeout(timeout time.Duration) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.Timeout = timeout
	}
}

// WithMaxRequests sets the number of probes allowed while half-open.
func WithMaxRequests(maxRequests uint32) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.MaxRequests = maxRequests
	}
}

// WithInterval sets the interval after which closed-state counts are cleared.
func WithInterval(interval time.Duration) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.Interval = interval
	}
}

// WithConsecutiveFailures trips the breaker after n failures in a row.
func WithConsecutiveFailures(n uint32) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= n
		}
	}
}

// WithOnStateChange registers a hook fired on every state transition.
func WithOnStateChange(fn func(name string, from, to gobreaker.State)) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.OnStateChange = fn
	}
}

// WithIsSuccessful decides which errors count against the breaker.
func WithIsSuccessful(fn func(err error) bool) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.IsSuccessful = fn
	}
}

// NewCircuitBreaker creates a new circuit breaker with the given options.
func NewCircuitBreaker(options ...CircuitBreakerOption) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        DefaultCircuitBreakerName,
		Timeout:     DefaultBreakerTimeout,
		MaxRequests: DefaultBreakerMaxRequests,
		Interval:    DefaultBreakerInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= DefaultConsecutiveTrips
		},
	}

	for _, option := range options {
		option(&settings)
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// IsOpen reports whether err was produced by the breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
