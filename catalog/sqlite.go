package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Schema is the DDL of the SQLite catalog. Each row keeps the full entry
// document next to the columns it is filtered on.
const Schema = `
CREATE TABLE IF NOT EXISTS methods (
    id          INTEGER PRIMARY KEY,
    site        TEXT NOT NULL,
    type        TEXT NOT NULL,
    status      TEXT NOT NULL,
    doc         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_methods_site ON methods(site);
`

// SQLiteStore keeps the catalog in a SQLite database.
type SQLiteStore struct {
	DB   *sql.DB
	lock *fileLock
}

// OpenSQLite opens (or creates) the catalog database at path with WAL,
// a 10s busy timeout and synchronous=NORMAL. ":memory:" opens a
// single-connection in-memory catalog.
func OpenSQLite(path string) (*SQLiteStore, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("catalog: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: exec schema: %w", err)
	}
	s := &SQLiteStore{DB: db}
	if !memory {
		s.lock = newFileLock(path)
	}
	return s, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, doc FROM methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			id  int64
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("catalog: list: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			return nil, fmt.Errorf("catalog: entry %d: %w", id, err)
		}
		e.ID = id
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, entries []Entry) ([]Entry, error) {
	unlock, err := s.writeLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM methods`).Scan(&next); err != nil {
		return nil, fmt.Errorf("catalog: max id: %w", err)
	}

	added := make([]Entry, len(entries))
	for i, e := range entries {
		next++
		e.ID = next
		doc, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("catalog: encode entry %d: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO methods (id, site, type, status, doc) VALUES (?,?,?,?,?)`,
			e.ID, e.Spec.Site, string(e.Spec.Type), string(e.Status), string(doc),
		); err != nil {
			return nil, fmt.Errorf("catalog: insert: %w", err)
		}
		added[i] = e
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: commit: %w", err)
	}
	return added, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	unlock, err := s.writeLock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `DELETE FROM methods WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("catalog: delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

func (s *SQLiteStore) writeLock(ctx context.Context) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	return s.lock.lock(ctx)
}
