// Package store implements the content-addressed image store.
//
// Images live in one flat directory as {sha256}.{ext}. An in-memory index maps
// content hash to Record and is the fast path for repeated captures within a
// session; the directory itself is the source of truth across restarts, so a
// miss in the index is always followed by a scan before anything is written.
package store

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.klb.dev/snaphub/internal/digest"
	"go.klb.dev/snaphub/internal/imgfmt"
)

// DirName is the directory created under os.TempDir by DefaultDir.
const DirName = "screenshot-hub"

var (
	ErrNotFound     = errors.New("store: image not found")
	ErrOutsideStore = errors.New("store: path outside storage directory")
)

// Record is one persisted image.
type Record struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	CreatedAt int64   `json:"created_at"`
	OCRResult *string `json:"ocr_result,omitempty"`
}

// OpError is a local I/O failure from a store operation.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string { return "store: " + e.Op + " " + e.Path + ": " + e.Err.Error() }
func (e *OpError) Unwrap() error { return e.Err }

// Store owns the storage directory and its index. All methods are safe for
// concurrent use; one mutex covers both the index and directory mutations.
type Store struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	images map[string]Record
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt and cleanup cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// DefaultDir returns $TMPDIR/screenshot-hub.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), DirName)
}

// New opens (creating if needed) the storage directory. The index starts empty.
func New(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &OpError{Op: "mkdir", Path: abs, Err: err}
	}
	s := &Store{
		dir:    abs,
		now:    time.Now,
		images: make(map[string]Record),
	}
	for _, o := range opts {
		o(s)
	}
	slog.Info("image store ready", "dir", abs)
	return s, nil
}

// Dir returns the absolute storage directory.
func (s *Store) Dir() string { return s.dir }

// Save persists data unless identical content is already stored. The bool
// result reports a duplicate; in that case nothing is written.
func (s *Store) Save(data []byte) (Record, bool, error) {
	hash := digest.Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.images[hash]; ok {
		slog.Debug("store: index hit", "id", hash)
		return rec, true, nil
	}

	rec, found, err := s.scanLocked(hash, data)
	if err != nil {
		return Record{}, false, err
	}
	if found {
		slog.Info("store: duplicate found on disk", "id", rec.ID, "path", rec.Path)
		return rec, true, nil
	}

	format := imgfmt.Sniff(data)
	if format == imgfmt.Unknown {
		format = imgfmt.Fallback
	}
	payload := data
	if !format.Storable() {
		if payload, err = imgfmt.ToPNG(data); err != nil {
			return Record{}, false, &OpError{Op: "convert", Path: hash, Err: err}
		}
		format = imgfmt.PNG
	}

	path := filepath.Join(s.dir, hash+"."+format.Ext())
	if _, err := os.Lstat(path); err == nil {
		slog.Info("store: file already on disk", "id", hash, "path", path)
		return s.recordLocked(hash, path), true, nil
	}

	if err := writeFileAtomic(s.dir, path, payload); err != nil {
		return Record{}, false, &OpError{Op: "write", Path: path, Err: err}
	}
	rec = Record{ID: hash, Path: path, CreatedAt: s.now().Unix()}
	s.images[hash] = rec
	slog.Debug("store: image saved", "id", hash, "path", path, "format", format, "size_bytes", len(payload))
	return rec, false, nil
}

// scanLocked looks for a file whose name stem is hash or whose content equals
// data. Content is only read for files of the same size.
func (s *Store) scanLocked(hash string, data []byte) (Record, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Record{}, false, &OpError{Op: "scan", Path: s.dir, Err: err}
	}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(s.dir, name)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == hash {
			return s.recordLocked(stem, path), true, nil
		}

		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Record{}, false, &OpError{Op: "stat", Path: path, Err: err}
		}
		if info.Size() != int64(len(data)) {
			continue
		}
		existing, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Record{}, false, &OpError{Op: "read", Path: path, Err: err}
		}
		if bytes.Equal(existing, data) {
			return s.recordLocked(stem, path), true, nil
		}
	}
	return Record{}, false, nil
}

// recordLocked returns the indexed record for id, or a fresh unindexed one
// for a file found on disk. The original creation time is not recoverable.
func (s *Store) recordLocked(id, path string) Record {
	if rec, ok := s.images[id]; ok {
		return rec
	}
	return Record{ID: id, Path: path, CreatedAt: s.now().Unix()}
}

// Images returns all indexed records, newest first.
func (s *Store) Images() []Record {
	s.mu.Lock()
	out := make([]Record, 0, len(s.images))
	for _, rec := range s.images {
		out = append(out, rec)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) })
	return out
}

// Get returns the indexed record for id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.images[id]
	return rec, ok
}

// Len returns the number of indexed records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// SetOCRResult attaches recognised text to an indexed record.
func (s *Store) SetOCRResult(id, text string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.images[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.OCRResult = &text
	s.images[id] = rec
	return rec, nil
}

// Delete removes the record and its file. Unknown ids are not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	rec, ok := s.images[id]
	if !ok {
		return nil
	}
	delete(s.images, id)
	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &OpError{Op: "delete", Path: rec.Path, Err: err}
	}
	slog.Debug("store: image deleted", "id", id, "path", rec.Path)
	return nil
}

// ClearAll deletes every indexed file and empties the index. Individual
// file failures are logged and do not stop the rest.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.images {
		if err := os.Remove(rec.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Error("store: delete failed during clear", "id", id, "path", rec.Path, "err", err)
		}
	}
	clear(s.images)
	slog.Info("store: cleared")
}

// CleanupOlderThan deletes records created at or before now-hours. It
// returns how many records were removed; per-record failures are joined.
// Ages too large to represent select nothing.
func (s *Store) CleanupOlderThan(hours int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hours = min(hours, math.MaxInt64/3600)
	cutoff := s.now().Unix() - hours*3600
	var stale []string
	for id, rec := range s.images {
		if rec.CreatedAt <= cutoff {
			stale = append(stale, id)
		}
	}
	var errs []error
	removed := 0
	for _, id := range stale {
		if err := s.deleteLocked(id); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("store: cleanup", "hours", hours, "removed", removed)
	}
	return removed, errors.Join(errs...)
}

// Rescan indexes {hash}.{ext} files present on disk but missing from the
// index, dating them by modification time. It returns the number added.
func (s *Store) Rescan() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, &OpError{Op: "scan", Path: s.dir, Err: err}
	}
	added := 0
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if !digest.Valid(stem) {
			continue
		}
		if _, ok := s.images[stem]; ok {
			continue
		}
		created := s.now().Unix()
		if info, err := e.Info(); err == nil {
			created = info.ModTime().Unix()
		}
		s.images[stem] = Record{ID: stem, Path: filepath.Join(s.dir, name), CreatedAt: created}
		added++
	}
	if added > 0 {
		slog.Info("store: rescan indexed existing files", "added", added)
	}
	return added, nil
}

// Locate resolves path (absolute, or relative to the store) to a file inside
// the storage directory.
func (s *Store) Locate(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}
	return path, nil
}

// Open reads the bytes of a stored file.
func (s *Store) Open(path string) ([]byte, error) {
	p, err := s.Locate(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, &OpError{Op: "read", Path: p, Err: err}
	}
	return b, nil
}

// forget drops the record backed by path, if any.
func (s *Store) forget(path string) (Record, bool) {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.images[stem]
	if !ok || rec.Path != path {
		return Record{}, false
	}
	delete(s.images, stem)
	return rec, true
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".incoming-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(name)
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	err = os.Rename(name, path)
	return err
}
