// Package ledger defines the durable request ledger the gateway accounts
// against, plus its SQLite and in-memory implementations.
//
// The ledger is the single shared mutable store in the system: the rate
// limiter reserves request records through it, the pipeline attaches usage
// snapshots after streams complete, and the identity verifier keeps login
// codes in it. All implementations must make ReserveRequest atomic — the
// count and the insert happen in one transaction, never as two calls.
package ledger

import "time"

// RequestMetadata is the per-request context recorded alongside an accepted
// proxied call.
type RequestMetadata struct {
	Method string
	Path   string
}

// UsageSnapshot is the token telemetry accumulated from one streamed
// upstream response. Fields fill in as events arrive; the snapshot is
// committed once, whatever its completeness, when the terminal event is seen.
type UsageSnapshot struct {
	MessageID    string
	InputTokens  int
	OutputTokens int
}

// LoginCode is an outstanding single-use login secret for one identity.
type LoginCode struct {
	Code     string
	IssuedAt time.Time
}

// Ledger is the durable store of identities, login codes, and request
// records with attached usage.
type Ledger interface {
	// AddRequest records one accepted proxied call and returns its id.
	AddRequest(identity string, meta RequestMetadata) (string, error)

	// ReserveRequest atomically counts the identity's records since
	// windowStart and, only if the count is below max, inserts a new record.
	// Returns ok=false without inserting when the window is full.
	ReserveRequest(identity string, meta RequestMetadata, windowStart time.Time, max int) (requestID string, ok bool, err error)

	// UpdateUsage attaches a usage snapshot to a previously added request.
	UpdateUsage(requestID string, usage UsageSnapshot) error

	// CountSince returns the number of request records for identity at or
	// after windowStart.
	CountSince(identity string, windowStart time.Time) (int, error)

	// PurgeOlderThan deletes all request records older than cutoff,
	// regardless of identity.
	PurgeOlderThan(cutoff time.Time) error

	// EnsureIdentity creates the identity on first contact. Idempotent.
	EnsureIdentity(email string) error

	// ResolveIdentityHandle returns the stable identity for an email, or
	// ok=false when the email has never been seen.
	ResolveIdentityHandle(email string) (identity string, ok bool, err error)

	// PutLoginCode stores the outstanding code for an identity, replacing
	// any prior one.
	PutLoginCode(identity, code string, issuedAt time.Time) error

	// GetLoginCode returns the outstanding code for an identity, if any.
	GetLoginCode(identity string) (LoginCode, bool, error)

	// DeleteLoginCode invalidates the outstanding code for an identity.
	DeleteLoginCode(identity string) error

	// Close releases the underlying store.
	Close() error
}
