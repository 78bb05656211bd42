package auth

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for account persistence.
type Store interface {
	Create(ctx context.Context, account *Account) error
	Find(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdatePassword(ctx context.Context, username string, hash, salt []byte) error
	SetRole(ctx context.Context, username string, role Role) error
	SetEnabled(ctx context.Context, username string, enabled bool) error
	Delete(ctx context.Context, username string) error
	Count(ctx context.Context) (int, error)
	RecordLogin(ctx context.Context, username string, at time.Time) error
	SaveLoginState(ctx context.Context, username string, failedAttempts int, lockoutUntil *time.Time) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed account store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create inserts a new account. The ID is generated if empty.
func (s *SQLiteStore) Create(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	account.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, salt, role, enabled, created_by, created_at, failed_attempts, lockout_until, last_login)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL)`,
		account.ID, account.Username,
		hex.EncodeToString(account.PasswordHash), hex.EncodeToString(account.Salt),
		string(account.Role), boolToInt(account.Enabled),
		nullString(account.CreatedBy), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("creating account: %w", err)
	}

	return nil
}

const accountColumns = "id, username, password_hash, salt, role, enabled, created_by, created_at, failed_attempts, lockout_until, last_login"

// Find retrieves an account by username. Usernames are case-sensitive.
func (s *SQLiteStore) Find(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE username = ?", username)
	return scanAccountFrom(row)
}

// List returns all accounts ordered by creation date.
func (s *SQLiteStore) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM users ORDER BY created_at ASC, username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccountFrom(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

// UpdatePassword replaces an account's password hash and salt.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, username string, hash, salt []byte) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, salt = ? WHERE username = ?`,
		hex.EncodeToString(hash), hex.EncodeToString(salt), username,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkAffected(result)
}

// SetRole changes an account's role. Live sessions are unaffected; the
// new role takes effect on the next login.
func (s *SQLiteStore) SetRole(ctx context.Context, username string, role Role) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE username = ?`, string(role), username)
	if err != nil {
		return fmt.Errorf("updating role: %w", err)
	}
	return checkAffected(result)
}

// SetEnabled toggles an account's enabled flag.
func (s *SQLiteStore) SetEnabled(ctx context.Context, username string, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET enabled = ? WHERE username = ?`, boolToInt(enabled), username)
	if err != nil {
		return fmt.Errorf("updating enabled flag: %w", err)
	}
	return checkAffected(result)
}

// Delete removes an account by username.
func (s *SQLiteStore) Delete(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return checkAffected(result)
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// RecordLogin stamps an account's last successful login time.
func (s *SQLiteStore) RecordLogin(ctx context.Context, username string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE username = ?`,
		at.UTC().Format(time.RFC3339), username)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return checkAffected(result)
}

// SaveLoginState persists an account's failure counter and lockout
// deadline so lockouts survive a restart.
func (s *SQLiteStore) SaveLoginState(ctx context.Context, username string, failedAttempts int, lockoutUntil *time.Time) error {
	var until sql.NullString
	if lockoutUntil != nil {
		until = sql.NullString{String: lockoutUntil.UTC().Format(time.RFC3339), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET failed_attempts = ?, lockout_until = ? WHERE username = ?`,
		failedAttempts, until, username)
	if err != nil {
		return fmt.Errorf("saving login state: %w", err)
	}
	return checkAffected(result)
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccountFrom scans an account from any scanner (Row or Rows).
func scanAccountFrom(sc scanner) (*Account, error) {
	var a Account
	var hash, salt, role string
	var enabled int
	var createdBy, lockoutUntil, lastLogin sql.NullString
	var createdAt string

	err := sc.Scan(&a.ID, &a.Username, &hash, &salt, &role, &enabled,
		&createdBy, &createdAt, &a.FailedAttempts, &lockoutUntil, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.PasswordHash, err = hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("decoding password hash: %w", err)
	}
	a.Salt, err = hex.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}

	a.Role = Role(role)
	a.Enabled = enabled != 0
	if createdBy.Valid {
		a.CreatedBy = createdBy.String
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	if lockoutUntil.Valid {
		t, perr := time.Parse(time.RFC3339, lockoutUntil.String)
		if perr == nil {
			a.LockoutUntil = &t
		}
	}
	if lastLogin.Valid {
		t, perr := time.Parse(time.RFC3339, lastLogin.String)
		if perr == nil {
			a.LastLogin = &t
		}
	}

	return &a, nil
}

// Summary converts an account to its listing view.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		Username:  a.Username,
		Role:      a.Role,
		Enabled:   a.Enabled,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
		LastLogin: a.LastLogin,
	}
}

// Helper functions.

func checkAffected(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
