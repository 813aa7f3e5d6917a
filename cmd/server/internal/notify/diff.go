package notify

// Diff holds the human-readable before/after renditions of every changed
// field, keyed by field name. Presentation of creations and deletions (e.g.
// showing only one side) is left to the rendering layer.
type Diff struct {
	Before map[string]string
	After  map[string]string
}

// FormatChanges renders the raw before/after values of each changed field
// through the field's registered formatter. Pure function over the summary;
// change type plays no role at this layer.
func FormatChanges(summary *ChangeSummary) Diff {
	diff := Diff{
		Before: make(map[string]string, len(summary.Fields)),
		After:  make(map[string]string, len(summary.Fields)),
	}
	for _, name := range summary.Fields {
		kind, ok := kindOf(name)
		if !ok {
			continue
		}
		diff.Before[name] = kind.Format(summary.Before[name])
		diff.After[name] = kind.Format(summary.After[name])
	}
	return diff
}
