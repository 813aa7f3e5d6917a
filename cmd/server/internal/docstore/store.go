// Package docstore implements the document store backing the merge queue
// tracker: JSON documents addressed by collection/id paths, with write
// triggers delivering before/after snapshots at mutation time.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidPath indicates a malformed document path.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Snapshot is a point-in-time view of a document. The zero value represents
// an absent document.
type Snapshot struct {
	path string
	data map[string]any
}

// NewSnapshot builds a snapshot directly from a field map. A nil map produces
// an absent snapshot. Intended for trigger plumbing and tests.
func NewSnapshot(path string, data map[string]any) Snapshot {
	return Snapshot{path: path, data: data}
}

// Path returns the document path the snapshot was taken at.
func (s Snapshot) Path() string { return s.path }

// Exists reports whether the document existed when the snapshot was taken.
func (s Snapshot) Exists() bool { return s.data != nil }

// Data returns the full field map, or nil for an absent document.
func (s Snapshot) Data() map[string]any { return s.data }

// Get returns a single field value, or nil if the field is missing or the
// whole snapshot is absent.
func (s Snapshot) Get(field string) any {
	if s.data == nil {
		return nil
	}
	return s.data[field]
}

// Decode unmarshals the snapshot's fields into a typed document.
func (s Snapshot) Decode(v any) error {
	if s.data == nil {
		return ErrNotFound
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Encode converts a typed document into the field-map form stored by the
// document store.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteEvent describes one document mutation. Exactly one of Before/After may
// be absent: creation has no Before, deletion has no After.
type WriteEvent struct {
	Path   string
	Before Snapshot
	After  Snapshot
}

// TriggerFunc handles a write event for a matching document path.
type TriggerFunc func(ctx context.Context, ev WriteEvent)

// Store is the document access contract consumed by the API layer and the
// notification pipeline.
type Store interface {
	// Get returns a snapshot of the document at path. A missing document is
	// not an error; the returned snapshot reports Exists() == false.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set writes the full document at path, creating or replacing it.
	Set(ctx context.Context, path string, doc map[string]any) error
	// Update merges the given fields into an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document at path. Deleting a missing document is a
	// no-op and fires no trigger.
	Delete(ctx context.Context, path string) error
	// List returns snapshots of every document in a collection.
	List(ctx context.Context, collection string) ([]Snapshot, error)
}
