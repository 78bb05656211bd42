package audit

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB opens a temp SQLite database with the audit schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE audit_logs (
			id         TEXT PRIMARY KEY,
			event      TEXT NOT NULL,
			username   TEXT NOT NULL,
			actor      TEXT,
			detail     TEXT,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_audit_logs_event ON audit_logs(event);
		CREATE INDEX idx_audit_logs_username ON audit_logs(username);
		CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}
	return db
}

// record inserts an entry, failing the test on error.
func record(t *testing.T, rec *SQLiteRecorder, entry *Record) {
	t.Helper()
	if err := rec.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func TestSQLiteRecorder_RoundTrip(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))

	entry := &Record{
		Event:    EventLoginSuccess,
		Username: "alice",
		Detail:   map[string]any{"ip": "10.0.0.1"},
	}
	record(t, rec, entry)

	if !strings.HasPrefix(entry.ID, "aud-") {
		t.Errorf("ID = %q, want aud- prefix", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}

	result, err := rec.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Records) != 1 {
		t.Fatalf("List() total = %d, records = %d, want 1/1", result.Total, len(result.Records))
	}

	got := result.Records[0]
	if got.ID != entry.ID || got.Event != EventLoginSuccess || got.Username != "alice" {
		t.Errorf("record = %+v", got)
	}
	if got.Detail["ip"] != "10.0.0.1" {
		t.Errorf("detail = %v, want ip preserved", got.Detail)
	}
}

func TestSQLiteRecorder_FilterByEvent(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))

	record(t, rec, &Record{Event: EventLoginSuccess, Username: "alice"})
	record(t, rec, &Record{Event: EventLoginFailure, Username: "alice"})
	record(t, rec, &Record{Event: EventLoginFailure, Username: "bob"})

	result, err := rec.List(context.Background(), Filter{Event: EventLoginFailure})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Errorf("filtered total = %d, want 2", result.Total)
	}
	for _, r := range result.Records {
		if r.Event != EventLoginFailure {
			t.Errorf("unexpected event %q in filtered results", r.Event)
		}
	}
}

func TestSQLiteRecorder_FilterByUsername(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))

	record(t, rec, &Record{Event: EventLoginFailure, Username: "alice"})
	record(t, rec, &Record{Event: EventLoginFailure, Username: "bob"})
	record(t, rec, &Record{Event: EventLogout, Username: "bob"})

	result, err := rec.List(context.Background(), Filter{Username: "bob"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Errorf("filtered total = %d, want 2", result.Total)
	}

	// Combined filters narrow further.
	result, err = rec.List(context.Background(), Filter{Username: "bob", Event: EventLogout})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("combined filter total = %d, want 1", result.Total)
	}
}

func TestSQLiteRecorder_Pagination(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))

	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		record(t, rec, &Record{
			Event:     EventLoginSuccess,
			Username:  "alice",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	first, err := rec.List(context.Background(), Filter{Limit: 3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if first.Total != 7 || len(first.Records) != 3 {
		t.Fatalf("page 1: total = %d, records = %d, want 7/3", first.Total, len(first.Records))
	}

	second, err := rec.List(context.Background(), Filter{Limit: 3, Offset: 3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(second.Records) != 3 {
		t.Fatalf("page 2: records = %d, want 3", len(second.Records))
	}
	if first.Records[0].ID == second.Records[0].ID {
		t.Error("pages should not overlap")
	}

	third, err := rec.List(context.Background(), Filter{Limit: 3, Offset: 6})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(third.Records) != 1 {
		t.Errorf("page 3: records = %d, want 1", len(third.Records))
	}
}

func TestSQLiteRecorder_NewestFirst(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))

	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	record(t, rec, &Record{Event: EventLoginSuccess, Username: "first", CreatedAt: base})
	record(t, rec, &Record{Event: EventLoginSuccess, Username: "second", CreatedAt: base.Add(time.Minute)})
	record(t, rec, &Record{Event: EventLoginSuccess, Username: "third", CreatedAt: base.Add(2 * time.Minute)})

	result, err := rec.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Records[0].Username != "third" || result.Records[2].Username != "first" {
		t.Errorf("order = %q/%q/%q, want newest first",
			result.Records[0].Username, result.Records[1].Username, result.Records[2].Username)
	}
}

func TestSQLiteRecorder_LimitClamp(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))
	record(t, rec, &Record{Event: EventLogout, Username: "alice"})

	result, err := rec.List(context.Background(), Filter{Limit: 5000})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("clamped limit = %d, want 200", result.Limit)
	}

	result, err = rec.List(context.Background(), Filter{Limit: -1, Offset: -10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 50 || result.Offset != 0 {
		t.Errorf("defaults: limit = %d, offset = %d, want 50/0", result.Limit, result.Offset)
	}
}

func TestSQLiteRecorder_NilDetail(t *testing.T) {
	rec := NewSQLiteRecorder(testDB(t))
	record(t, rec, &Record{Event: EventLogout, Username: "alice"})

	result, err := rec.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Records[0].Detail != nil {
		t.Errorf("detail = %v, want nil", result.Records[0].Detail)
	}
}
