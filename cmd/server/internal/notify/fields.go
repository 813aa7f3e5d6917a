// Package notify implements the queue item change notification pipeline:
// classifying document writes, summarizing changed fields, formatting diffs,
// resolving recipients and dispatching emails.
package notify

import (
	"sort"
	"strings"

	"github.com/houzhh15/mergeq/cmd/server/internal/models"
)

// Kind selects the comparison and rendering strategy for a watched field.
type Kind int

const (
	// StringKind treats nil and "" as the same absent value.
	StringKind Kind = iota
	// UserKind compares embedded user proxies by UID only.
	UserKind
	// LabelListKind compares label lists as order-insensitive sets. An empty
	// list is a present value and is not equal to an absent one.
	LabelListKind
)

// WatchedField pairs a document field name with its strategy.
type WatchedField struct {
	Name string
	Kind Kind
}

// WatchedFields lists every field whose change triggers a notification, in
// the order changed fields are reported and rendered.
// The priority field exists in the item schema but is deliberately not
// watched.
var WatchedFields = []WatchedField{
	{"basedOnVersion", StringKind},
	{"description", StringKind},
	{"developer", UserKind},
	{"client", StringKind},
	{"jiraPriority", StringKind},
	{"mrLink", StringKind},
	{"mrLink2", StringKind},
	{"qaAssignee", UserKind},
	{"reviewer", UserKind},
	{"section", StringKind},
	{"status", StringKind},
	{"ticketNumber", StringKind},
	{"type", LabelListKind},
}

// WatchedFieldNames returns the registered field names in registry order.
func WatchedFieldNames() []string {
	names := make([]string, len(WatchedFields))
	for i, f := range WatchedFields {
		names[i] = f.Name
	}
	return names
}

// kindOf looks up the strategy registered for a field name.
func kindOf(name string) (Kind, bool) {
	for _, f := range WatchedFields {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return 0, false
}

// Equal reports whether two document values are equivalent under the field's
// comparison rule.
func (k Kind) Equal(a, b any) bool {
	switch k {
	case UserKind:
		ua, aok := userValue(a)
		ub, bok := userValue(b)
		if aok && bok {
			return ua.UID == ub.UID
		}
		return !aok && !bok
	case LabelListKind:
		la, aok := labelsValue(a)
		lb, bok := labelsValue(b)
		if aok && bok {
			return joinSorted(la) == joinSorted(lb)
		}
		return !aok && !bok
	default:
		sa, aok := stringValue(a)
		sb, bok := stringValue(b)
		if aok && bok {
			return sa == sb
		}
		return !aok && !bok
	}
}

// Format renders a document value for human display. Absent values render as
// "-".
func (k Kind) Format(v any) string {
	switch k {
	case UserKind:
		u, ok := userValue(v)
		if !ok || u.DisplayName == "" {
			return "-"
		}
		return u.DisplayName
	case LabelListKind:
		labels, ok := labelsValue(v)
		if !ok {
			return "-"
		}
		return joinSorted(labels)
	default:
		s, ok := stringValue(v)
		if !ok {
			return "-"
		}
		return s
	}
}

// stringValue normalizes a string-family document value. Nil, the empty
// string and non-string values all count as absent.
func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// userValue normalizes a user-family document value. JSON decoding yields a
// map; typed callers and tests may hand in a UserProxy directly.
func userValue(v any) (models.UserProxy, bool) {
	switch u := v.(type) {
	case nil:
		return models.UserProxy{}, false
	case models.UserProxy:
		return u, true
	case *models.UserProxy:
		if u == nil {
			return models.UserProxy{}, false
		}
		return *u, true
	case map[string]any:
		var proxy models.UserProxy
		proxy.UID, _ = u["uid"].(string)
		proxy.DisplayName, _ = u["displayName"].(string)
		proxy.Email, _ = u["email"].(string)
		return proxy, true
	default:
		return models.UserProxy{}, false
	}
}

// labelsValue normalizes a label-list document value. An empty slice is
// present; nil is absent.
func labelsValue(v any) ([]string, bool) {
	switch l := v.(type) {
	case nil:
		return nil, false
	case []string:
		return l, true
	case []any:
		labels := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				labels = append(labels, s)
			}
		}
		return labels, true
	default:
		return nil, false
	}
}

func joinSorted(labels []string) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
