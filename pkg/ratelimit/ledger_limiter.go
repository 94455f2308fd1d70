package ratelimit

import (
	"fmt"
	"time"

	"github.com/lexer-cc/lexer-gateway/pkg/ledger"
	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

// LedgerLimiter enforces a per-identity sliding window over the durable
// request ledger: at most Max accepted requests within the trailing Window.
//
// Each Check first sweeps records older than the window out of the ledger
// (idempotent, global), then performs an atomic count-gated reservation.
// The count and the insert run in one ledger transaction, so concurrent
// checks for the same identity cannot both slip under the limit.
//
// Rejected attempts are not recorded; the window counts accepted requests
// only.
type LedgerLimiter struct {
	store  ledger.Ledger
	max    int
	window time.Duration

	// now is injectable for window tests.
	now func() time.Time
}

// NewLedgerLimiter creates a limiter allowing max requests per window.
func NewLedgerLimiter(store ledger.Ledger, max int, window time.Duration) *LedgerLimiter {
	return &LedgerLimiter{
		store:  store,
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// SetClock replaces the limiter's clock. Intended for tests.
func (l *LedgerLimiter) SetClock(now func() time.Time) {
	l.now = now
}

func (l *LedgerLimiter) Name() string {
	return "ledger-limiter"
}

// Check reserves a request slot for the identity. Storage errors are
// returned to the resolver, which rejects by default (fail-closed): a
// broken ledger must never silently wave requests through.
func (l *LedgerLimiter) Check(ctx Context) (*Decision, error) {
	now := l.now()
	windowStart := now.Add(-l.window)

	// Global sweep keeps the ledger from accumulating stale records. It is
	// cheap relative to request volume here; a high-volume deployment
	// should move it to a background schedule.
	if err := l.store.PurgeOlderThan(windowStart); err != nil {
		return nil, fmt.Errorf("ledger purge failed: %w", err)
	}

	meta := ledger.RequestMetadata{Method: ctx.Method, Path: ctx.Path}
	requestID, ok, err := l.store.ReserveRequest(ctx.Identity, meta, windowStart, l.max)
	if err != nil {
		return nil, fmt.Errorf("ledger reservation failed: %w", err)
	}

	if !ok {
		return &Decision{
			Allowed:   false,
			Remaining: 0,
			Limit:     int64(l.max),
			Provider:  l.Name(),
		}, nil
	}

	count, err := l.store.CountSince(ctx.Identity, windowStart)
	if err != nil {
		// The reservation already succeeded; a failed remaining-quota read
		// is not grounds to reject.
		logging.Warnf("Post-reservation count failed for %s: %v", ctx.Identity, err)
		count = l.max
	}

	remaining := int64(l.max - count)
	if remaining < 0 {
		remaining = 0
	}

	return &Decision{
		Allowed:   true,
		Remaining: remaining,
		Limit:     int64(l.max),
		RequestID: requestID,
		Provider:  l.Name(),
	}, nil
}
