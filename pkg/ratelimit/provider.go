// Package ratelimit provides the gateway's pluggable rate limiting.
//
// A single LedgerLimiter enforces the per-identity sliding window today, but
// decisions flow through a Provider interface and a chaining Resolver with
// first-deny semantics, so additional providers (per-IP, global, token
// budget) can be added without touching the pipeline.
//
// Adding a new provider:
//  1. Implement the Provider interface
//  2. Register it when building the Resolver in cmd/gateway
package ratelimit

// Provider is a source of rate limiting decisions.
type Provider interface {
	// Name returns a human-readable name for logging (e.g., "ledger-limiter").
	Name() string

	// Check determines whether the request described by ctx should be
	// allowed, reserving capacity as a side effect where applicable.
	// Errors indicate provider failures (storage, network), not denials.
	Check(ctx Context) (*Decision, error)
}

// Context carries the per-request information needed for evaluation.
type Context struct {
	Identity string
	Method   string
	Path     string
}

// Decision is the result of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int64
	Limit     int64

	// RequestID identifies the ledger record reserved for an accepted
	// request, so usage can be attached to it after the response streams.
	// Empty when the deciding provider does not write the ledger.
	RequestID string

	// Provider is the name of the provider that made this decision.
	Provider string
}
