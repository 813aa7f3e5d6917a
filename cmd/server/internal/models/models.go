// Package models defines the merge queue document types stored in the
// document store and exchanged with the API.
package models

import "time"

// UserProxy is a denormalized, point-in-time snapshot of a user identity
// embedded in queue and item documents. Two proxies refer to the same person
// iff their UIDs match; display name drift is not a semantic change.
type UserProxy struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// QueueItem is a tracked merge task. Assignee fields are optional UserProxy
// values; CreatedBy/UpdatedBy are document-store paths ("users/<uid>") used
// to resolve the actor of the latest mutation.
type QueueItem struct {
	ID             string     `json:"id"`
	QueueID        string     `json:"queueId"`
	Section        string     `json:"section,omitempty"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status,omitempty"`
	Type           []string   `json:"type,omitempty"`
	JiraPriority   string     `json:"jiraPriority,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Developer      *UserProxy `json:"developer,omitempty"`
	Reviewer       *UserProxy `json:"reviewer,omitempty"`
	QAAssignee     *UserProxy `json:"qaAssignee,omitempty"`
	TicketNumber   string     `json:"ticketNumber,omitempty"`
	BasedOnVersion string     `json:"basedOnVersion,omitempty"`
	MRLink         string     `json:"mrLink,omitempty"`
	MRLink2        string     `json:"mrLink2,omitempty"`
	Client         string     `json:"client,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Active         bool       `json:"active"`
	CreatedBy      string     `json:"createdBy,omitempty"`
	UpdatedBy      string     `json:"updatedBy,omitempty"`
	DateCreated    *time.Time `json:"dateCreated,omitempty"`
	DateUpdated    *time.Time `json:"dateUpdated,omitempty"`
}

// QueueSection names a section of a queue and the item field its rows are
// grouped by.
type QueueSection struct {
	Name    string `json:"name"`
	GroupBy string `json:"groupBy"`
}

// Queue owns zero or more QueueItems, keyed by the item's QueueID. Watchers
// receive a notification for every tracked change to any item in the queue.
type Queue struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Clients     []string       `json:"clients,omitempty"`
	Sections    []QueueSection `json:"sections,omitempty"`
	Members     []UserProxy    `json:"members,omitempty"`
	Watchers    []UserProxy    `json:"watchers,omitempty"`
	Active      bool           `json:"active"`
	CreatedBy   string         `json:"createdBy,omitempty"`
	UpdatedBy   string         `json:"updatedBy,omitempty"`
	DateCreated *time.Time     `json:"dateCreated,omitempty"`
	DateUpdated *time.Time     `json:"dateUpdated,omitempty"`
}
