// Package audit provides the append-only security event trail:
// recording login activity, lockouts, permission denials, and account
// administration, plus querying the history back out.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded in the trail.
const (
	EventLoginSuccess     = "login-success"
	EventLoginFailure     = "login-failure"
	EventLockoutTriggered = "lockout-triggered"
	EventLogout           = "logout"
	EventPermissionDenied = "permission-denied"
	EventUserCreated      = "user-created"
	EventUserDeleted      = "user-deleted"
	EventRoleChanged      = "role-changed"
	EventPasswordReset    = "password-reset"
	EventUserEnabled      = "user-enabled"
	EventUserDisabled     = "user-disabled"
)

// UnknownUser is recorded as the username on failed logins for
// accounts that do not exist, so the trail never confirms which
// usernames are real.
const UnknownUser = "unknown"

// Record represents a single audit trail entry. Entries are
// append-only: nothing in the system updates or deletes them.
type Record struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Username  string         `json:"username"`
	Actor     string         `json:"actor,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which records to return.
type Filter struct {
	Event    string // optional: filter by event kind
	Username string // optional: filter by subject username
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated audit trail results.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Recorder defines the interface for audit trail operations.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRecorder stores the audit trail in SQLite.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder creates a new SQLite-backed audit recorder.
func NewSQLiteRecorder(db *sql.DB) *SQLiteRecorder {
	return &SQLiteRecorder{db: db}
}

// Record appends an entry to the trail. The ID and CreatedAt are
// generated if empty.
func (r *SQLiteRecorder) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "aud-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var detailJSON *string
	if rec.Detail != nil {
		b, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("marshalling audit detail: %w", err)
		}
		s := string(b)
		detailJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, event, username, actor, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Event, rec.Username,
		nullableString(rec.Actor), detailJSON,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns records matching the filter, ordered by most recent first.
func (r *SQLiteRecorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for audit queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, filter.Event)
	}
	if filter.Username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, filter.Username)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, event, username, actor, detail, created_at FROM audit_logs %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var actor, detailJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.Event, &rec.Username,
			&actor, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}

		if actor.Valid {
			rec.Actor = actor.String
		}
		if detailJSON.Valid && detailJSON.String != "" {
			var detail map[string]any
			if json.Unmarshal([]byte(detailJSON.String), &detail) == nil {
				rec.Detail = detail
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
