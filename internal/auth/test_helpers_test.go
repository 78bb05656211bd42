package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'viewer',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			failed_attempts INTEGER NOT NULL DEFAULT 0,
			lockout_until TEXT,
			last_login TEXT
		) STRICT;

		CREATE INDEX idx_users_role ON users(role);

		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			username TEXT NOT NULL,
			actor TEXT,
			detail TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_audit_logs_event ON audit_logs(event);
		CREATE INDEX idx_audit_logs_username ON audit_logs(username);
		CREATE INDEX idx_audit_logs_created ON audit_logs(created_at);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying auth migration: %v", err)
	}

	return db
}

// seedTestAccount inserts an account with the given password and returns it.
func seedTestAccount(t *testing.T, db *sql.DB, username, password string, role Role) *Account {
	t.Helper()

	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generating salt: %v", err)
	}

	store := NewSQLiteStore(db)
	account := &Account{
		Username:     username,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		Role:         role,
		Enabled:      true,
	}
	if err := store.Create(context.Background(), account); err != nil {
		t.Fatalf("creating test account %s: %v", username, err)
	}
	return account
}

// fakeClock is a controllable time source for lockout and expiry tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
