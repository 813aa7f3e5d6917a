package notify

import "github.com/houzhh15/mergeq/cmd/server/internal/docstore"

// ChangeType classifies a document write. Exactly one flag is set for any
// legal (before, after) pair where at least one snapshot is present.
type ChangeType struct {
	Created bool `json:"created"`
	Updated bool `json:"updated"`
	Deleted bool `json:"deleted"`
}

// Classify derives the change type from the before/after snapshot pair.
func Classify(before, after docstore.Snapshot) ChangeType {
	return ChangeType{
		Created: !before.Exists() && after.Exists(),
		Updated: before.Exists() && after.Exists(),
		Deleted: !after.Exists(),
	}
}

// Label returns the past-tense verb used in notification subjects. The
// "Changed" fallback is unreachable for legal trigger input.
func (t ChangeType) Label() string {
	switch {
	case t.Created:
		return "Created"
	case t.Updated:
		return "Updated"
	case t.Deleted:
		return "Deleted"
	default:
		return "Changed"
	}
}

// ChangedFields returns the watched fields whose values differ between the
// snapshots, in registry order. If either snapshot is absent the document was
// created or deleted, which counts as a change to every watched field.
func ChangedFields(before, after docstore.Snapshot) []string {
	if !before.Exists() || !after.Exists() {
		return WatchedFieldNames()
	}

	var changed []string
	for _, f := range WatchedFields {
		if !f.Kind.Equal(before.Get(f.Name), after.Get(f.Name)) {
			changed = append(changed, f.Name)
		}
	}
	return changed
}
