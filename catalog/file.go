package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the catalog as an indented JSON array.
type FileStore struct {
	path string
	lock *fileLock
	mu   sync.Mutex
}

// OpenFile returns a store backed by the JSON document at path. A missing
// file is an empty catalog.
func OpenFile(path string) *FileStore {
	return &FileStore{path: path, lock: newFileLock(path)}
}

// Path returns the document path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: mkdir: %w", err)
	}
	unlock, err := s.lock.rlock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.load()
}

func (s *FileStore) Append(ctx context.Context, entries []Entry) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.writeLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load()
	if err != nil {
		return nil, err
	}
	next := maxID(current)
	added := make([]Entry, len(entries))
	for i, e := range entries {
		next++
		e.ID = next
		added[i] = e
	}
	if err := s.save(append(current, added...)); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *FileStore) Delete(ctx context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.writeLock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	current, err := s.load()
	if err != nil {
		return 0, err
	}
	drop := idSet(ids)
	kept := current[:0]
	for _, e := range current {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	removed := len(current) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(kept)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) writeLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: mkdir: %w", err)
	}
	return s.lock.lock(ctx)
}

func (s *FileStore) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", s.path, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", s.path, err)
	}
	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			return nil, fmt.Errorf("catalog: entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *FileStore) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("catalog: temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("catalog: rename: %w", err)
	}
	return nil
}
