package ratelimit

import (
	"fmt"
	"strings"

	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

// Resolver chains multiple Providers and evaluates rate limits using
// first-deny semantics: every provider is checked and if any provider
// denies, the request is rejected.
//
// Security modes:
//   - fail-closed (failOpen=false, default): provider errors cause rejection.
//   - fail-open   (failOpen=true): provider errors are logged but the request
//     is allowed through. Use only when availability outranks accounting.
type Resolver struct {
	providers []Provider
	failOpen  bool
}

// NewResolver creates a resolver with the given provider chain.
// By default the resolver is fail-closed.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers, failOpen: false}
}

// SetFailOpen configures whether provider errors (not denials — denials
// always block) let the request through.
func (r *Resolver) SetFailOpen(failOpen bool) {
	if r != nil {
		r.failOpen = failOpen
	}
}

// Check evaluates all providers in order.
//
//   - If any provider denies: returns that denied Decision immediately.
//   - If all providers allow: returns an allowed Decision carrying the most
//     restrictive remaining quota and the ledger RequestID, if any provider
//     reserved one.
//   - If a provider errors: behavior depends on failOpen.
func (r *Resolver) Check(ctx Context) (*Decision, error) {
	if r == nil || len(r.providers) == 0 {
		return &Decision{Allowed: true}, nil
	}

	merged := &Decision{
		Allowed:   true,
		Remaining: -1, // sentinel: unset
		Limit:     -1,
	}

	tried := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		d, err := p.Check(ctx)
		if err != nil {
			tried = append(tried, p.Name())
			if r.failOpen {
				logging.Warnf("Rate limit provider %q error (fail_open=true, allowing): %v", p.Name(), err)
				continue
			}
			logging.Errorf("Rate limit provider %q error (fail_open=false, rejecting): %v", p.Name(), err)
			return &Decision{Allowed: false, Provider: p.Name()},
				fmt.Errorf("rate limit check failed at provider %q: %w", p.Name(), err)
		}

		tried = append(tried, p.Name())

		if !d.Allowed {
			logging.Infof("Rate limit DENIED by provider %q for identity=%s (limit=%d, remaining=%d)",
				p.Name(), ctx.Identity, d.Limit, d.Remaining)
			d.Provider = p.Name()
			return d, nil
		}

		// Merge: most restrictive quota wins; keep whichever provider
		// reserved a ledger record.
		if merged.Remaining < 0 || d.Remaining < merged.Remaining {
			merged.Remaining = d.Remaining
		}
		if merged.Limit < 0 || d.Limit < merged.Limit {
			merged.Limit = d.Limit
		}
		if d.RequestID != "" {
			merged.RequestID = d.RequestID
		}
	}

	if merged.Remaining < 0 {
		merged.Remaining = 0
	}
	if merged.Limit < 0 {
		merged.Limit = 0
	}

	logging.Debugf("Rate limit ALLOWED after checking [%s] for identity=%s (remaining=%d)",
		strings.Join(tried, " → "), ctx.Identity, merged.Remaining)
	return merged, nil
}

// ProviderNames returns the names of all registered providers (for logging).
func (r *Resolver) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
