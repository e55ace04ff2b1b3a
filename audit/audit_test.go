package audit

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/argos/kit"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA journal_mode=WAL")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteLogger_Init(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()

	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='audit_log'").Scan(&count)
	if count != 1 {
		t.Fatal("audit_log table not created")
	}
}

func TestSQLiteLogger_Log_Sync(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()
	logger.Init()

	entry := &Entry{Action: "check", Parameters: `{"identity":"alice"}`}
	if err := logger.Log(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(entry.EntryID, "aud_") {
		t.Fatalf("entry_id = %q", entry.EntryID)
	}
	if entry.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
	if entry.Status != "success" {
		t.Fatalf("status: got %q, want 'success'", entry.Status)
	}
	if entry.Transport != "http" {
		t.Fatalf("transport: got %q, want 'http'", entry.Transport)
	}

	var action string
	db.QueryRow("SELECT action FROM audit_log WHERE entry_id = ?", entry.EntryID).Scan(&action)
	if action != "check" {
		t.Fatalf("DB action: got %q", action)
	}
}

func TestSQLiteLogger_LogAsync(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	logger.LogAsync(&Entry{Action: "async_test"})
	logger.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='async_test'").Scan(&count)
	if count != 1 {
		t.Fatalf("async entry count: got %d", count)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSQLiteLogger_FillDefaults_Error(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()
	logger.Init()

	entry := &Entry{Action: "delete_method", Error: "method 9 not found"}
	logger.Log(context.Background(), entry)
	if entry.Status != "error" {
		t.Fatalf("status for error entry: got %q", entry.Status)
	}
}

func TestSQLiteLogger_WithIDGenerator(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db, WithIDGenerator(func() string { return "custom_id" }))
	defer logger.Close()
	logger.Init()

	entry := &Entry{Action: "custom_gen"}
	logger.Log(context.Background(), entry)
	if entry.EntryID != "custom_id" {
		t.Fatalf("custom ID: got %q", entry.EntryID)
	}
}

func TestMiddleware_Success(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	base := func(ctx context.Context, req any) (any, error) {
		return map[string]int{"deleted": 1}, nil
	}
	endpoint := Middleware(logger, "delete_method")(base)

	ctx := kit.WithTransport(context.Background(), "mcp")
	ctx = kit.WithRequestID(ctx, "req_abc")
	if _, err := endpoint(ctx, map[string]string{"id": "3"}); err != nil {
		t.Fatal(err)
	}
	logger.Close()

	var transport, requestID, params, result, status string
	db.QueryRow("SELECT transport, request_id, parameters, result, status FROM audit_log WHERE action='delete_method'").
		Scan(&transport, &requestID, &params, &result, &status)
	if transport != "mcp" || requestID != "req_abc" {
		t.Fatalf("transport=%q request_id=%q", transport, requestID)
	}
	if params != `{"id":"3"}` || result != `{"deleted":1}` {
		t.Fatalf("params=%q result=%q", params, result)
	}
	if status != "success" {
		t.Fatalf("status: got %q", status)
	}
}

func TestMiddleware_Error(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	errFail := errors.New("endpoint failed")
	base := func(ctx context.Context, req any) (any, error) {
		return nil, errFail
	}
	_, err := Middleware(logger, "fail_op")(base)(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}
	logger.Close()

	var status, errMsg string
	db.QueryRow("SELECT status, error_message FROM audit_log WHERE action='fail_op'").
		Scan(&status, &errMsg)
	if status != "error" || errMsg != "endpoint failed" {
		t.Fatalf("status=%q error_message=%q", status, errMsg)
	}
}

func TestSQLiteLogger_BatchFlush(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	for i := 0; i < 50; i++ {
		logger.LogAsync(&Entry{Action: "batch_test"})
	}
	time.Sleep(100 * time.Millisecond)
	logger.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='batch_test'").Scan(&count)
	if count != 50 {
		t.Fatalf("batch count: got %d, want 50", count)
	}
}

func TestQuery(t *testing.T) {
	logger, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, action := range []string{"check", "commit", "check", "check"} {
		e := &Entry{Action: action, Timestamp: base.Add(time.Duration(i) * time.Minute).UnixMilli()}
		if err := logger.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := logger.Query(ctx, Filter{Action: "check", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Time().Equal(base.Add(3*time.Minute)) {
		t.Fatalf("newest checks = %+v", got)
	}

	got, err = logger.Query(ctx, Filter{Since: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("since filter = %d entries", len(got))
	}
}
