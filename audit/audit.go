// Package audit keeps a SQLite trail of the operations argos performed:
// checks, catalog commits and deletions, with the transport and request
// they came from.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/argos/idgen"
	"github.com/hazyhaar/argos/kit"
)

// Schema is the DDL of the audit trail.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    action        TEXT NOT NULL,
    transport     TEXT NOT NULL,
    request_id    TEXT,
    parameters    TEXT NOT NULL DEFAULT '{}',
    result        TEXT,
    error_message TEXT,
    duration_ms   INTEGER,
    status        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action, timestamp DESC);
`

const (
	batchSize  = 32
	bufferSize = 256
	// maxResult caps the stored result document.
	maxResult = 8 << 10
)

// Entry is one audited operation. Timestamp is Unix milliseconds.
type Entry struct {
	EntryID    string `json:"entry_id"`
	Timestamp  int64  `json:"timestamp"`
	Action     string `json:"action"`
	Transport  string `json:"transport"`
	RequestID  string `json:"request_id,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status"`
}

// Time returns the entry timestamp.
func (e *Entry) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// SQLiteLogger writes entries to audit_log, synchronously or through a
// buffered background flusher.
type SQLiteLogger struct {
	db     *sql.DB
	owned  bool
	newID  idgen.Generator
	logger *slog.Logger
	ch     chan *Entry
	stop   chan struct{}
	done   chan struct{}
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator sets the generator of entry IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// WithLogger sets the logger flush failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(l *SQLiteLogger) { l.logger = logger }
}

// NewSQLiteLogger starts a logger over db. Call Init before the first
// write and Close to flush.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:     db,
		newID:  idgen.Prefixed("aud_", idgen.UUIDv7()),
		logger: slog.Default(),
		ch:     make(chan *Entry, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Open opens (or creates) the audit database at path and initialises it.
// Close also closes the database.
func Open(path string, opts ...Option) (*SQLiteLogger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", p, err)
		}
	}
	l := NewSQLiteLogger(db, opts...)
	l.owned = true
	if err := l.Init(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// Init creates the audit_log table.
func (l *SQLiteLogger) Init() error {
	if _, err := l.db.Exec(Schema); err != nil {
		return fmt.Errorf("audit: exec schema: %w", err)
	}
	return nil
}

// Log inserts entry synchronously.
func (l *SQLiteLogger) Log(ctx context.Context, entry *Entry) error {
	l.fillDefaults(entry)
	return l.insert(ctx, l.db, entry)
}

// LogAsync queues entry. A full buffer falls back to a synchronous insert.
func (l *SQLiteLogger) LogAsync(entry *Entry) {
	l.fillDefaults(entry)
	select {
	case l.ch <- entry:
	default:
		l.logger.Warn("audit: buffer full, sync fallback", "action", entry.Action)
		if err := l.insert(context.Background(), l.db, entry); err != nil {
			l.logger.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// Filter selects entries in Query. Zero fields match everything.
type Filter struct {
	Action string
	Since  time.Time
	Limit  int // default 50
}

// Query returns matching entries, newest first.
func (l *SQLiteLogger) Query(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT entry_id, timestamp, action, transport, request_id, parameters,
		result, error_message, duration_ms, status FROM audit_log WHERE 1=1`
	var args []any
	if f.Action != "" {
		q += " AND action = ?"
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := 50
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY timestamp DESC, entry_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var requestID, result, errMsg sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&e.EntryID, &e.Timestamp, &e.Action, &e.Transport, &requestID,
			&e.Parameters, &result, &errMsg, &duration, &e.Status); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.RequestID = requestID.String
		e.Result = result.String
		e.Error = errMsg.String
		e.DurationMs = duration.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the buffer and stops the flusher. A database opened by Open
// is closed too.
func (l *SQLiteLogger) Close() error {
	select {
	case <-l.stop:
		return nil
	default:
	}
	close(l.stop)
	<-l.done
	if l.owned {
		return l.db.Close()
	}
	return nil
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Parameters == "" {
		e.Parameters = "{}"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *SQLiteLogger) insert(ctx context.Context, db execer, e *Entry) error {
	_, err := db.ExecContext(ctx, `INSERT INTO audit_log
		(entry_id, timestamp, action, transport, request_id, parameters,
		 result, error_message, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp, e.Action, e.Transport, e.RequestID, e.Parameters,
		e.Result, e.Error, e.DurationMs, e.Status)
	return err
}

func (l *SQLiteLogger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	batch := make([]*Entry, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			l.logger.Error("audit: begin tx", "error", err)
			return
		}
		for _, e := range batch {
			if err := l.insert(ctx, tx, e); err != nil {
				l.logger.Error("audit: insert", "error", err, "entry_id", e.EntryID)
			}
		}
		if err := tx.Commit(); err != nil {
			l.logger.Error("audit: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Middleware records every call of an endpoint under action. The request
// is stored as parameters; the response, capped, as result.
func Middleware(l *SQLiteLogger, action string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			e := &Entry{
				Action:     action,
				Transport:  kit.GetTransport(ctx),
				RequestID:  kit.GetRequestID(ctx),
				Parameters: marshal(req),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.Error = err.Error()
			} else {
				e.Result = marshal(resp)
			}
			l.LogAsync(e)
			return resp, err
		}
	}
}

func marshal(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if len(b) > maxResult {
		return string(b[:maxResult])
	}
	return string(b)
}
