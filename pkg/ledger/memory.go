package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process Ledger for development and tests. A single
// mutex covers every operation, which trivially makes ReserveRequest atomic.
type MemoryLedger struct {
	mu       sync.Mutex
	users    map[string]time.Time
	codes    map[string]LoginCode
	requests []memoryRequest

	// Now is the clock used for record timestamps. Tests may replace it.
	Now func() time.Time
}

type memoryRequest struct {
	id        string
	identity  string
	meta      RequestMetadata
	createdAt time.Time
	usage     *UsageSnapshot
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		users: make(map[string]time.Time),
		codes: make(map[string]LoginCode),
		Now:   time.Now,
	}
}

func (l *MemoryLedger) AddRequest(identity string, meta RequestMetadata) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(identity, meta), nil
}

func (l *MemoryLedger) addLocked(identity string, meta RequestMetadata) string {
	id := uuid.NewString()
	l.requests = append(l.requests, memoryRequest{
		id:        id,
		identity:  identity,
		meta:      meta,
		createdAt: l.Now(),
	})
	return id
}

func (l *MemoryLedger) ReserveRequest(identity string, meta RequestMetadata, windowStart time.Time, max int) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.countLocked(identity, windowStart) >= max {
		return "", false, nil
	}
	return l.addLocked(identity, meta), true, nil
}

func (l *MemoryLedger) UpdateUsage(requestID string, usage UsageSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.requests {
		if l.requests[i].id == requestID {
			u := usage
			l.requests[i].usage = &u
			return nil
		}
	}
	return fmt.Errorf("no request record with id %s", requestID)
}

func (l *MemoryLedger) CountSince(identity string, windowStart time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(identity, windowStart), nil
}

func (l *MemoryLedger) countLocked(identity string, windowStart time.Time) int {
	count := 0
	for i := range l.requests {
		if l.requests[i].identity == identity && !l.requests[i].createdAt.Before(windowStart) {
			count++
		}
	}
	return count
}

func (l *MemoryLedger) PurgeOlderThan(cutoff time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.requests[:0]
	for i := range l.requests {
		if !l.requests[i].createdAt.Before(cutoff) {
			kept = append(kept, l.requests[i])
		}
	}
	l.requests = kept
	return nil
}

func (l *MemoryLedger) EnsureIdentity(email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.users[email]; !ok {
		l.users[email] = l.Now()
	}
	return nil
}

func (l *MemoryLedger) ResolveIdentityHandle(email string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.users[email]; !ok {
		return "", false, nil
	}
	return email, true, nil
}

func (l *MemoryLedger) PutLoginCode(identity, code string, issuedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.codes[identity] = LoginCode{Code: code, IssuedAt: issuedAt}
	return nil
}

func (l *MemoryLedger) GetLoginCode(identity string) (LoginCode, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.codes[identity]
	return c, ok, nil
}

func (l *MemoryLedger) DeleteLoginCode(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.codes, identity)
	return nil
}

func (l *MemoryLedger) Close() error { return nil }

// RequestIDs returns the ids of all recorded requests in insertion order.
// Test helper.
func (l *MemoryLedger) RequestIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, len(l.requests))
	for i := range l.requests {
		ids[i] = l.requests[i].id
	}
	return ids
}

// Usage returns the snapshot attached to a request, if any. Test helper.
func (l *MemoryLedger) Usage(requestID string) (UsageSnapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.requests {
		if l.requests[i].id == requestID && l.requests[i].usage != nil {
			return *l.requests[i].usage, true
		}
	}
	return UsageSnapshot{}, false
}
