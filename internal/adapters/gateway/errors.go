package gateway

import "errors"

var (
	// ErrNoPermit is reported when the shared permit pool could not be
	// acquired before the total budget expired.
	ErrNoPermit = errors.New("gateway: no permit before deadline")

	// ErrBreakerOpen is reported when the per-service circuit breaker is
	// rejecting calls.
	ErrBreakerOpen = errors.New("gateway: circuit breaker open")
)
