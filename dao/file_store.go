package dao

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileSnapshot struct {
	Version   int               `json:"version"`
	Entries   map[string]string `json:"entries"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FileStore keeps the whole map in one JSON document. Every write replaces
// the document through a synced temp file and a rename, so a crash leaves
// either the old or the new version on disk.
type FileStore struct {
	mu   sync.RWMutex
	snap *fileSnapshot
	path string
}

func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = filepath.Join("data", "cryptocagua.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &FileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() error { return nil }

// load reads the document. An unreadable one is moved aside to
// <path>.corrupt and the store starts empty.
func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(data) > 0 {
		var snap fileSnapshot
		err := json.Unmarshal(data, &snap)
		if err == nil {
			if snap.Entries == nil {
				snap.Entries = map[string]string{}
			}
			s.snap = &snap
			return nil
		}
		aside := s.path + ".corrupt"
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return rerr
		}
		slog.Warn("local store unreadable, starting empty", "path", s.path, "moved_to", aside, "error", err)
	}
	s.snap = &fileSnapshot{Version: 1, Entries: map[string]string{}, UpdatedAt: time.Now()}
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.snap); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) withWrite(ctx context.Context, fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fn(s.snap.Entries)
	s.snap.UpdatedAt = time.Now()
	return s.flushLocked()
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snap.Entries[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.withWrite(ctx, func(m map[string]string) { m[key] = value })
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.withWrite(ctx, func(m map[string]string) { delete(m, key) })
}
