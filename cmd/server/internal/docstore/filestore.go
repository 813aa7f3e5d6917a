package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	documentFileSuffix  = ".json"
	temporaryFileSuffix = ".tmp"
)

// FileStore stores each document as a JSON file under a base directory.
// A document at "queues/q1" lives at <base>/queues/q1.json and its
// subcollection documents at <base>/queues/q1/items/<id>.json, so a document
// and its subcollections never collide on disk.
type FileStore struct {
	baseDir string

	mu       sync.RWMutex
	triggers []registeredTrigger
}

type registeredTrigger struct {
	pattern string
	fn      TriggerFunc
}

// NewFileStore creates the base directory if needed and returns a store
// rooted at it.
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("docstore: base directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: create base directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// OnWrite registers a trigger invoked after every successful mutation of a
// document whose path matches the pattern. Triggers run synchronously in the
// mutating call; callers that want concurrent fan-out wrap fn with
// trigger.Runner.
func (s *FileStore) OnWrite(pattern string, fn TriggerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = append(s.triggers, registeredTrigger{pattern: pattern, fn: fn})
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	file, err := s.documentFile(path)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(path, file)
}

// Set implements Store.
func (s *FileStore) Set(ctx context.Context, path string, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := s.documentFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	before, err := s.readLocked(path, file)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.writeLocked(file, doc); err != nil {
		s.mu.Unlock()
		return err
	}
	triggers := s.matchingTriggersLocked(path)
	s.mu.Unlock()

	s.fire(ctx, triggers, WriteEvent{
		Path:   path,
		Before: before,
		After:  NewSnapshot(path, doc),
	})
	return nil
}

// Update implements Store.
func (s *FileStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := s.documentFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	before, err := s.readLocked(path, file)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !before.Exists() {
		s.mu.Unlock()
		return fmt.Errorf("docstore: update %s: %w", path, ErrNotFound)
	}

	merged := make(map[string]any, len(before.data)+len(fields))
	for k, v := range before.data {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if err := s.writeLocked(file, merged); err != nil {
		s.mu.Unlock()
		return err
	}
	triggers := s.matchingTriggersLocked(path)
	s.mu.Unlock()

	s.fire(ctx, triggers, WriteEvent{
		Path:   path,
		Before: before,
		After:  NewSnapshot(path, merged),
	})
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := s.documentFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	before, err := s.readLocked(path, file)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !before.Exists() {
		s.mu.Unlock()
		return nil
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		s.mu.Unlock()
		return fmt.Errorf("docstore: delete %s: %w", path, err)
	}
	triggers := s.matchingTriggersLocked(path)
	s.mu.Unlock()

	s.fire(ctx, triggers, WriteEvent{
		Path:   path,
		Before: before,
		After:  NewSnapshot(path, nil),
	})
	return nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.baseDir, filepath.FromSlash(collection))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), documentFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), documentFileSuffix)
		path := collection + "/" + id
		snap, err := s.readLocked(path, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if snap.Exists() {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

func (s *FileStore) readLocked(path, file string) (Snapshot, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(path, nil), nil
		}
		return Snapshot{}, fmt.Errorf("docstore: read %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("docstore: decode %s: %w", path, err)
	}
	return NewSnapshot(path, doc), nil
}

// writeLocked writes the document atomically via a temporary file rename.
func (s *FileStore) writeLocked(file string, doc map[string]any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("docstore: create collection directory: %w", err)
	}

	tmp := file + temporaryFileSuffix
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("docstore: write document: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("docstore: write document: %w", err)
	}
	return nil
}

func (s *FileStore) matchingTriggersLocked(path string) []TriggerFunc {
	var fns []TriggerFunc
	for _, t := range s.triggers {
		if MatchPath(t.pattern, path) {
			fns = append(fns, t.fn)
		}
	}
	return fns
}

func (s *FileStore) fire(ctx context.Context, fns []TriggerFunc, ev WriteEvent) {
	for _, fn := range fns {
		fn(ctx, ev)
	}
}

// documentFile validates a document path and maps it to its file location.
// Document paths have an even number of segments (collection/id pairs).
func (s *FileStore) documentFile(path string) (string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", err
	}
	if len(segs)%2 != 0 {
		return "", fmt.Errorf("%w: %q is a collection path, not a document path", ErrInvalidPath, path)
	}
	return filepath.Join(s.baseDir, filepath.Join(segs...)) + documentFileSuffix, nil
}

func validateCollectionPath(path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: %q is a document path, not a collection path", ErrInvalidPath, path)
	}
	return nil
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(trimmed, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q contains an empty segment", ErrInvalidPath, path)
		}
		if seg == "." || strings.Contains(seg, "..") {
			return nil, fmt.Errorf("%w: %q contains a relative segment", ErrInvalidPath, path)
		}
		if strings.ContainsAny(seg, `\`) {
			return nil, fmt.Errorf("%w: %q contains a path separator", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

var _ Store = (*FileStore)(nil)
