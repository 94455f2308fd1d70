package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS login_codes (
	email     TEXT PRIMARY KEY,
	code      TEXT NOT NULL,
	issued_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS requests (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	method        TEXT NOT NULL,
	path          TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	message_id    TEXT,
	input_tokens  INTEGER,
	output_tokens INTEGER
);

CREATE INDEX IF NOT EXISTS idx_requests_email_created
	ON requests (email, created_at);
`

// SQLiteLedger stores the request ledger in a SQLite database. Timestamps
// are kept as Unix nanoseconds so window comparisons are plain integer
// comparisons.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the ledger database at path.
// ":memory:" gives a process-local ledger for development and tests.
func OpenSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// between the reservation transaction and concurrent usage updates.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) AddRequest(identity string, meta RequestMetadata) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(
		`INSERT INTO requests (id, email, method, path, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, identity, meta.Method, meta.Path, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to add request record: %w", err)
	}
	return id, nil
}

// ReserveRequest runs the count and the insert inside one immediate
// transaction, so two concurrent reservations for the same identity cannot
// both observe a below-limit count.
func (l *SQLiteLedger) ReserveRequest(identity string, meta RequestMetadata, windowStart time.Time, max int) (string, bool, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM requests WHERE email = ? AND created_at >= ?`,
		identity, windowStart.UnixNano(),
	).Scan(&count)
	if err != nil {
		return "", false, fmt.Errorf("failed to count window records: %w", err)
	}

	if count >= max {
		return "", false, nil
	}

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO requests (id, email, method, path, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, identity, meta.Method, meta.Path, time.Now().UnixNano(),
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert request record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return id, true, nil
}

func (l *SQLiteLedger) UpdateUsage(requestID string, usage UsageSnapshot) error {
	res, err := l.db.Exec(
		`UPDATE requests SET message_id = ?, input_tokens = ?, output_tokens = ? WHERE id = ?`,
		usage.MessageID, usage.InputTokens, usage.OutputTokens, requestID,
	)
	if err != nil {
		return fmt.Errorf("failed to update usage: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no request record with id %s", requestID)
	}
	return nil
}

func (l *SQLiteLedger) CountSince(identity string, windowStart time.Time) (int, error) {
	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM requests WHERE email = ? AND created_at >= ?`,
		identity, windowStart.UnixNano(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

func (l *SQLiteLedger) PurgeOlderThan(cutoff time.Time) error {
	res, err := l.db.Exec(`DELETE FROM requests WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to purge old requests: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Debugf("Purged %d request records older than %s", n, cutoff.Format(time.RFC3339))
	}
	return nil
}

func (l *SQLiteLedger) EnsureIdentity(email string) error {
	_, err := l.db.Exec(
		`INSERT INTO users (email, created_at) VALUES (?, ?) ON CONFLICT(email) DO NOTHING`,
		email, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure identity: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) ResolveIdentityHandle(email string) (string, bool, error) {
	var got string
	err := l.db.QueryRow(`SELECT email FROM users WHERE email = ?`, email).Scan(&got)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve identity: %w", err)
	}
	return got, true, nil
}

func (l *SQLiteLedger) PutLoginCode(identity, code string, issuedAt time.Time) error {
	_, err := l.db.Exec(
		`INSERT INTO login_codes (email, code, issued_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET code = excluded.code, issued_at = excluded.issued_at`,
		identity, code, issuedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store login code: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) GetLoginCode(identity string) (LoginCode, bool, error) {
	var code string
	var issuedAt int64
	err := l.db.QueryRow(
		`SELECT code, issued_at FROM login_codes WHERE email = ?`, identity,
	).Scan(&code, &issuedAt)
	if err == sql.ErrNoRows {
		return LoginCode{}, false, nil
	}
	if err != nil {
		return LoginCode{}, false, fmt.Errorf("failed to load login code: %w", err)
	}
	return LoginCode{Code: code, IssuedAt: time.Unix(0, issuedAt)}, true, nil
}

func (l *SQLiteLedger) DeleteLoginCode(identity string) error {
	if _, err := l.db.Exec(`DELETE FROM login_codes WHERE email = ?`, identity); err != nil {
		return fmt.Errorf("failed to delete login code: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
