package notify

import (
	"sort"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
)

// assigneeRoles are the item fields whose occupants are notified. Both the
// before and after occupant of a role are included, so a reassignment
// notifies the outgoing and the incoming assignee.
var assigneeRoles = [3]string{"developer", "reviewer", "qaAssignee"}

// Recipients computes the deduplicated notification targets: assignees from
// both snapshots plus the queue's watchers, minus the actor. Email addresses
// are compared as opaque case-sensitive strings. The returned slice is sorted
// only for log stability; order carries no meaning.
func Recipients(summary *ChangeSummary, before, after docstore.Snapshot) []string {
	seen := make(map[string]struct{})

	for _, role := range assigneeRoles {
		if u, ok := userValue(after.Get(role)); ok && u.Email != "" {
			seen[u.Email] = struct{}{}
		}
		if u, ok := userValue(before.Get(role)); ok && u.Email != "" {
			seen[u.Email] = struct{}{}
		}
	}

	if summary.Queue != nil {
		for _, watcher := range summary.Queue.Watchers {
			if watcher.Email != "" {
				seen[watcher.Email] = struct{}{}
			}
		}
	}

	// The author of a change never hears about their own change.
	if summary.User != nil && summary.User.Email != "" {
		delete(seen, summary.User.Email)
	}

	recipients := make([]string, 0, len(seen))
	for email := range seen {
		recipients = append(recipients, email)
	}
	sort.Strings(recipients)
	return recipients
}
