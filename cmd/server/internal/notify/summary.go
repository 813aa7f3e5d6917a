package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
	"github.com/houzhh15/mergeq/cmd/server/internal/models"
)

// ChangeSummary is the immutable record built once per trigger invocation.
// It is never mutated after construction and never shared across invocations.
type ChangeSummary struct {
	// User is the actor credited with the change, resolved through the
	// document's audit references. Nil when the actor cannot be determined.
	User *models.UserProxy
	// Fields lists the changed watched fields in registry order. Never empty:
	// the no-change case is represented by Summarize returning ok=false.
	Fields []string
	// ChangeType classifies the write.
	ChangeType ChangeType
	// Queue is the owning queue document, nil if it no longer exists.
	Queue *models.Queue
	// Latest is the after snapshot if present, otherwise the before snapshot.
	Latest models.QueueItem
	// Before and After hold the raw values of exactly the changed fields.
	// Restricting the maps to the changed set keeps unwatched fields out of
	// notifications.
	Before map[string]any
	After  map[string]any
}

// Summarizer enriches a classified change with the owning queue and the
// acting user.
type Summarizer struct {
	store docstore.Store
}

// NewSummarizer returns a summarizer reading related documents from store.
func NewSummarizer(store docstore.Store) *Summarizer {
	return &Summarizer{store: store}
}

// Summarize builds the change summary for a write event. ok is false when no
// watched field changed; the pipeline stops there with no side effects.
// A missing actor or queue document is degraded information, not an error.
func (s *Summarizer) Summarize(ctx context.Context, ev docstore.WriteEvent) (*ChangeSummary, bool, error) {
	fields := ChangedFields(ev.Before, ev.After)
	if len(fields) == 0 {
		return nil, false, nil
	}

	latestSnap := ev.After
	if !latestSnap.Exists() {
		latestSnap = ev.Before
	}
	var latest models.QueueItem
	if err := latestSnap.Decode(&latest); err != nil {
		return nil, false, fmt.Errorf("decode item %s: %w", ev.Path, err)
	}

	user, err := s.changeUser(ctx, ev)
	if err != nil {
		return nil, false, err
	}

	queue, err := s.parentQueue(ctx, latest.QueueID)
	if err != nil {
		return nil, false, err
	}

	summary := &ChangeSummary{
		User:       user,
		Fields:     fields,
		ChangeType: Classify(ev.Before, ev.After),
		Queue:      queue,
		Latest:     latest,
		Before:     make(map[string]any, len(fields)),
		After:      make(map[string]any, len(fields)),
	}
	for _, field := range fields {
		summary.Before[field] = ev.Before.Get(field)
		summary.After[field] = ev.After.Get(field)
	}
	return summary, true, nil
}

// changeUser resolves the actor from the audit references on the after
// snapshot: updatedBy when set, otherwise createdBy. Firestore-style triggers
// carry no caller identity, so the audit fields written by the API are the
// only source.
func (s *Summarizer) changeUser(ctx context.Context, ev docstore.WriteEvent) (*models.UserProxy, error) {
	ref, _ := ev.After.Get("updatedBy").(string)
	if ref == "" {
		ref, _ = ev.After.Get("createdBy").(string)
	}
	if ref == "" {
		return nil, nil
	}

	snap, err := s.store.Get(ctx, ref)
	if err != nil {
		// A malformed reference degrades to an unknown actor.
		if errors.Is(err, docstore.ErrInvalidPath) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve actor %s: %w", ref, err)
	}
	if !snap.Exists() {
		return nil, nil
	}

	var user models.UserProxy
	if err := snap.Decode(&user); err != nil {
		return nil, fmt.Errorf("decode actor %s: %w", ref, err)
	}
	return &user, nil
}

func (s *Summarizer) parentQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	if queueID == "" {
		return nil, nil
	}

	snap, err := s.store.Get(ctx, "queues/"+queueID)
	if err != nil {
		if errors.Is(err, docstore.ErrInvalidPath) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve queue %s: %w", queueID, err)
	}
	if !snap.Exists() {
		return nil, nil
	}

	var queue models.Queue
	if err := snap.Decode(&queue); err != nil {
		return nil, fmt.Errorf("decode queue %s: %w", queueID, err)
	}
	return &queue, nil
}
