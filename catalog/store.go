package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Store persists catalog entries. Learning only ever appends; Delete is the
// operator's explicit removal. Implementations are safe for concurrent use
// within a process and serialise writers across processes.
type Store interface {
	// List returns every entry in catalog order.
	List(ctx context.Context) ([]Entry, error)
	// Append stores entries with IDs continuing after the current maximum
	// and returns them with their IDs set.
	Append(ctx context.Context, entries []Entry) ([]Entry, error)
	// Delete removes the entries with the given IDs and reports how many
	// were removed.
	Delete(ctx context.Context, ids []int64) (int, error)
	Close() error
}

// ErrLocked is returned when the catalog lock cannot be taken before the
// context ends.
var ErrLocked = errors.New("catalog: locked by another writer")

// Open opens the catalog at path: SQLite for .db, .sqlite and .sqlite3
// files, a JSON document otherwise.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	}
	return OpenFile(path), nil
}

const lockRetry = 50 * time.Millisecond

// fileLock is the cross-process single-writer lock kept next to a catalog.
type fileLock struct {
	fl *flock.Flock
}

func newFileLock(catalogPath string) *fileLock {
	return &fileLock{fl: flock.New(catalogPath + ".lock")}
}

func (l *fileLock) lock(ctx context.Context) (func(), error) {
	ok, err := l.fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		}
		return nil, fmt.Errorf("catalog: lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() { _ = l.fl.Unlock() }, nil
}

func (l *fileLock) rlock(ctx context.Context) (func(), error) {
	ok, err := l.fl.TryRLockContext(ctx, lockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		}
		return nil, fmt.Errorf("catalog: rlock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() { _ = l.fl.Unlock() }, nil
}

func maxID(entries []Entry) int64 {
	var m int64
	for _, e := range entries {
		m = max(m, e.ID)
	}
	return m
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
