// Package filestore persists JSON and YAML documents under a single
// data directory with atomic temp+rename writes.
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
)

// Store reads and writes documents by path relative to the data dir.
// Writes are atomic per file; callers must not assume atomicity across
// files.
type Store struct {
	fs   afero.Fs
	root string
}

// New creates a store over the OS filesystem rooted at dataDir.
func New(dataDir string) *Store {
	return NewWithFs(afero.NewOsFs(), dataDir)
}

// NewWithFs creates a store over an arbitrary filesystem, used by tests
// with an in-memory fs.
func NewWithFs(fs afero.Fs, dataDir string) *Store {
	return &Store{fs: fs, root: dataDir}
}

func (s *Store) abs(rel string) string {
	return path.Join(s.root, rel)
}

// ReadJSON unmarshals rel into out. A missing file leaves out untouched
// (callers pre-fill defaults) and returns nil; a malformed file returns
// ErrStorageCorrupt.
func (s *Store) ReadJSON(rel string, out any) error {
	return s.read(rel, out, json.Unmarshal)
}

// ReadYAML is ReadJSON for YAML documents.
func (s *Store) ReadYAML(rel string, out any) error {
	return s.read(rel, out, yaml.Unmarshal)
}

func (s *Store) read(rel string, out any, unmarshal func([]byte, any) error) error {
	raw, err := afero.ReadFile(s.fs, s.abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", domain.ErrStorageIO, rel, err)
	}
	if err := unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrStorageCorrupt, rel, err)
	}
	return nil
}

// ReadRaw returns the file bytes, or ErrNotFound.
func (s *Store) ReadRaw(rel string) ([]byte, error) {
	raw, err := afero.ReadFile(s.fs, s.abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, rel)
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageIO, rel, err)
	}
	return raw, nil
}

// WriteJSON marshals v and atomically replaces rel.
func (s *Store) WriteJSON(rel string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", domain.ErrStorageIO, rel, err)
	}
	return s.writeAtomic(rel, raw)
}

// WriteYAML marshals v and atomically replaces rel.
func (s *Store) WriteYAML(rel string, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", domain.ErrStorageIO, rel, err)
	}
	return s.writeAtomic(rel, raw)
}

// writeAtomic writes to rel.tmp.<nonce>, fsyncs and renames over rel.
func (s *Store) writeAtomic(rel string, raw []byte) error {
	target := s.abs(rel)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", domain.ErrStorageIO, rel, err)
	}

	tmp := fmt.Sprintf("%s.tmp.%s", target, uuid.NewString()[:8])
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrStorageIO, rel, err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorageIO, rel, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: fsync %s: %v", domain.ErrStorageIO, rel, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", domain.ErrStorageIO, rel, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", domain.ErrStorageIO, rel, err)
	}
	return nil
}

// ListFiles returns the relative paths of regular files under the
// given prefix directory, sorted lexically. Temp files are skipped.
func (s *Store) ListFiles(prefix string) ([]string, error) {
	dir := s.abs(prefix)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStorageIO, prefix, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.Contains(e.Name(), ".tmp.") {
			continue
		}
		out = append(out, path.Join(prefix, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// DeleteFile removes rel; deleting a missing file is not an error.
func (s *Store) DeleteFile(rel string) error {
	if err := s.fs.Remove(s.abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrStorageIO, rel, err)
	}
	return nil
}

// Rename moves src to dst within the data dir.
func (s *Store) Rename(src, dst string) error {
	if err := s.fs.MkdirAll(path.Dir(s.abs(dst)), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", domain.ErrStorageIO, dst, err)
	}
	if err := s.fs.Rename(s.abs(src), s.abs(dst)); err != nil {
		return fmt.Errorf("%w: rename %s -> %s: %v", domain.ErrStorageIO, src, dst, err)
	}
	return nil
}

// Exists reports whether rel is present.
func (s *Store) Exists(rel string) bool {
	ok, err := afero.Exists(s.fs, s.abs(rel))
	return err == nil && ok
}
