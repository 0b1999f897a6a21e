// Package gateway wraps outbound calls to external AI collaborators with
// timeout budgets, bounded retries, a shared concurrency permit pool and a
// circuit breaker.
//
// Every call returns a tagged Result instead of an error: network and
// timeout conditions are Unavailable, schema-level surprises are
// InvalidResponse, and callers treat both as "signal absent". The gateway
// never surfaces an unrecoverable failure for an unreachable collaborator.
package gateway

// Outcome tags a gateway call result.
type Outcome string

const (
	// OutcomeOK means the collaborator answered with a 2xx payload.
	OutcomeOK Outcome = "ok"
	// OutcomeUnavailable covers timeouts, connection errors, 5xx
	// responses, exhausted permits and open circuit breakers.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeInvalidResponse covers non-retryable status codes and
	// responses the caller cannot use.
	OutcomeInvalidResponse Outcome = "invalid_response"
)

// Result is the tagged outcome of one gateway call.
type Result struct {
	Outcome Outcome
	// Body is the raw response payload; only set for OutcomeOK.
	Body []byte
	// Detail is a short human-readable failure description.
	Detail string
}

// OK wraps a successful payload.
func OK(body []byte) Result {
	return Result{Outcome: OutcomeOK, Body: body}
}

// Unavailable tags a transient collaborator failure.
func Unavailable(detail string) Result {
	return Result{Outcome: OutcomeUnavailable, Detail: detail}
}

// InvalidResponse tags a response the pipeline must not trust.
func InvalidResponse(detail string) Result {
	return Result{Outcome: OutcomeInvalidResponse, Detail: detail}
}

// IsOK reports whether the call produced a usable payload.
func (r Result) IsOK() bool { return r.Outcome == OutcomeOK }
