package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
	"github.com/houzhh15/mergeq/cmd/server/internal/mail"
	"github.com/houzhh15/mergeq/cmd/server/internal/models"
)

const itemPath = "queues/q1/items/i1"

// fakeMailer records batches and optionally fails every send.
type fakeMailer struct {
	mu      sync.Mutex
	batches [][]mail.Message
	err     error
}

func (m *fakeMailer) Send(_ context.Context, msgs []mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, msgs)
	return nil
}

func (m *fakeMailer) sent() [][]mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// fakeRenderer returns canned bodies so dispatcher tests stay independent of
// the real templates.
type fakeRenderer struct{}

func (fakeRenderer) Render(name string, _ any) (string, error) {
	return "body:" + name, nil
}

// countingStore wraps a store and counts reads, proving the disabled flag
// short-circuits before any database access.
type countingStore struct {
	docstore.Store
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, path string) (docstore.Snapshot, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, path)
}

func seedStore(t *testing.T, watchers []map[string]any) *docstore.FileStore {
	t.Helper()
	ctx := context.Background()
	store, err := docstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "users/id-john-roe", map[string]any{
		"uid": "id-john-roe", "displayName": "John Roe", "email": "john.roe@example.com",
	}))
	require.NoError(t, store.Set(ctx, "users/id-jane-doe", map[string]any{
		"uid": "id-jane-doe", "displayName": "Jane Doe", "email": "jane.doe@example.com",
	}))

	queue := map[string]any{"id": "q1", "name": "Release Queue", "active": true}
	if watchers != nil {
		queue["watchers"] = watchers
	}
	require.NoError(t, store.Set(ctx, "queues/q1", queue))
	return store
}

func updateEvent() docstore.WriteEvent {
	before := map[string]any{
		"id": "i1", "queueId": "q1",
		"description": "", "ticketNumber": "", "developer": nil, "type": []any{},
	}
	after := map[string]any{
		"id": "i1", "queueId": "q1",
		"description":  "Lokg ueowi clodp",
		"ticketNumber": "MQ-102",
		"developer": map[string]any{
			"uid": "id-jane-doe", "displayName": "Jane Doe", "email": "jane.doe@example.com",
		},
		"type":      []any{"CLF Improve", "SVP Improve"},
		"updatedBy": "users/id-john-roe",
	}
	return docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, before),
		After:  docstore.NewSnapshot(itemPath, after),
	}
}

func newNotifier(opts Options, store docstore.Store, mailer mail.Mailer) *Notifier {
	return NewNotifier(opts, store, fakeRenderer{}, mailer, nil, slog.Default())
}

func TestSummarizeUpdate(t *testing.T) {
	store := seedStore(t, nil)
	summarizer := NewSummarizer(store)

	summary, ok, err := summarizer.Summarize(context.Background(), updateEvent())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{"description", "developer", "ticketNumber", "type"}, summary.Fields)
	assert.Equal(t, ChangeType{Updated: true}, summary.ChangeType)
	require.NotNil(t, summary.User)
	assert.Equal(t, "id-john-roe", summary.User.UID)
	require.NotNil(t, summary.Queue)
	assert.Equal(t, "Release Queue", summary.Queue.Name)
	assert.Equal(t, "MQ-102", summary.Latest.TicketNumber)

	// Value maps are restricted to exactly the changed fields.
	assert.Len(t, summary.Before, 4)
	assert.Len(t, summary.After, 4)
	assert.NotContains(t, summary.After, "updatedBy")
}

func TestSummarizeActorFallsBackToCreatedBy(t *testing.T) {
	store := seedStore(t, nil)
	summarizer := NewSummarizer(store)

	after := map[string]any{
		"id": "i1", "queueId": "q1",
		"description": "new item",
		"createdBy":   "users/id-jane-doe",
	}
	ev := docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, nil),
		After:  docstore.NewSnapshot(itemPath, after),
	}

	summary, ok, err := summarizer.Summarize(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ChangeType{Created: true}, summary.ChangeType)
	require.NotNil(t, summary.User)
	assert.Equal(t, "id-jane-doe", summary.User.UID)
}

func TestSummarizeUnknownActorIsNotAnError(t *testing.T) {
	store := seedStore(t, nil)
	summarizer := NewSummarizer(store)

	after := map[string]any{
		"id": "i1", "queueId": "q1",
		"description": "new item",
		"updatedBy":   "users/no-such-user",
	}
	ev := docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, nil),
		After:  docstore.NewSnapshot(itemPath, after),
	}

	summary, ok, err := summarizer.Summarize(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, summary.User)
}

func TestSummarizeNoWatchedChange(t *testing.T) {
	store := seedStore(t, nil)
	summarizer := NewSummarizer(store)

	ev := docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, map[string]any{"id": "i1", "queueId": "q1", "notes": "notes from before"}),
		After:  docstore.NewSnapshot(itemPath, map[string]any{"id": "i1", "queueId": "q1", "notes": "these are updated notes"}),
	}

	summary, ok, err := summarizer.Summarize(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, summary)
}

func TestFormatChangesScenario(t *testing.T) {
	store := seedStore(t, nil)
	summary, ok, err := NewSummarizer(store).Summarize(context.Background(), updateEvent())
	require.NoError(t, err)
	require.True(t, ok)

	diff := FormatChanges(summary)

	assert.Equal(t, "-", diff.Before["description"])
	assert.Equal(t, "-", diff.Before["developer"])
	assert.Equal(t, "-", diff.Before["ticketNumber"])
	// An empty list is present, so it renders as "" rather than "-".
	assert.Equal(t, "", diff.Before["type"])

	assert.Equal(t, "Lokg ueowi clodp", diff.After["description"])
	assert.Equal(t, "Jane Doe", diff.After["developer"])
	assert.Equal(t, "MQ-102", diff.After["ticketNumber"])
	assert.Equal(t, "CLF Improve, SVP Improve", diff.After["type"])
}

func TestRecipientsIncludesOutgoingAndIncomingAssignees(t *testing.T) {
	before := map[string]any{
		"developer": map[string]any{"uid": "u-old", "email": "old.dev@example.com"},
	}
	after := map[string]any{
		"developer": map[string]any{"uid": "u-new", "email": "new.dev@example.com"},
		"reviewer":  map[string]any{"uid": "u-rev", "email": "reviewer@example.com"},
	}
	summary := &ChangeSummary{}

	got := Recipients(summary,
		docstore.NewSnapshot(itemPath, before),
		docstore.NewSnapshot(itemPath, after),
	)
	assert.ElementsMatch(t, []string{"old.dev@example.com", "new.dev@example.com", "reviewer@example.com"}, got)
}

func TestRecipientsExcludesActorEverywhere(t *testing.T) {
	// Actor is both an assignee and a watcher; they must not be notified.
	after := map[string]any{
		"developer": map[string]any{"uid": "u-a", "email": "a@x.com"},
	}
	summary := &ChangeSummary{
		User: &models.UserProxy{UID: "u-a", Email: "a@x.com"},
		Queue: &models.Queue{
			Watchers: []models.UserProxy{
				{UID: "u-a", Email: "a@x.com"},
				{UID: "u-w", Email: "watcher@example.com"},
			},
		},
	}

	got := Recipients(summary,
		docstore.NewSnapshot(itemPath, nil),
		docstore.NewSnapshot(itemPath, after),
	)
	assert.Equal(t, []string{"watcher@example.com"}, got)
}

func TestRecipientsDedupIsCaseSensitive(t *testing.T) {
	// Emails are opaque case-sensitive strings; A@x.com and a@x.com are
	// distinct recipients.
	before := map[string]any{
		"developer": map[string]any{"uid": "u1", "email": "A@x.com"},
	}
	after := map[string]any{
		"developer": map[string]any{"uid": "u1", "email": "a@x.com"},
	}

	got := Recipients(&ChangeSummary{},
		docstore.NewSnapshot(itemPath, before),
		docstore.NewSnapshot(itemPath, after),
	)
	assert.ElementsMatch(t, []string{"A@x.com", "a@x.com"}, got)
}

func TestHandleChangeSendsBatch(t *testing.T) {
	store := seedStore(t, []map[string]any{
		{"uid": "u-w", "displayName": "Watcher", "email": "watcher@example.com"},
	})
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: true, FromEmail: "queue@example.com", FromName: "Merge Queue"}, store, mailer)

	notifier.HandleChange(context.Background(), updateEvent())

	batches := mailer.sent()
	require.Len(t, batches, 1)
	msgs := batches[0]
	// Jane Doe (incoming developer) and the watcher; John Roe is the actor
	// and has no role on the item.
	require.Len(t, msgs, 2)

	var tos []string
	for _, m := range msgs {
		tos = append(tos, m.To)
		assert.Equal(t, "MQ-102 | Merge Task Updated", m.Subject)
		assert.Equal(t, "queue@example.com", m.From)
		assert.Equal(t, "Merge Queue", m.FromName)
		assert.Equal(t, "body:queue-item-change", m.HTML)
		assert.Equal(t, "body:queue-item-change-text", m.Text)
	}
	assert.ElementsMatch(t, []string{"jane.doe@example.com", "watcher@example.com"}, tos)
}

func TestHandleChangeDeletion(t *testing.T) {
	store := seedStore(t, nil)
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: true, FromEmail: "queue@example.com"}, store, mailer)

	before := map[string]any{
		"id": "i1", "queueId": "q1",
		"developer": map[string]any{"uid": "id-jane-doe", "email": "jane.doe@example.com"},
	}
	notifier.HandleChange(context.Background(), docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, before),
		After:  docstore.NewSnapshot(itemPath, nil),
	})

	batches := mailer.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "jane.doe@example.com", batches[0][0].To)
	// No ticket number on the item, so the subject has no prefix.
	assert.Equal(t, "Merge Task Deleted", batches[0][0].Subject)
}

func TestHandleChangeNoWatchedFields(t *testing.T) {
	store := seedStore(t, nil)
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: true}, store, mailer)

	notifier.HandleChange(context.Background(), docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, map[string]any{"id": "i1", "queueId": "q1", "notes": "a"}),
		After:  docstore.NewSnapshot(itemPath, map[string]any{"id": "i1", "queueId": "q1", "notes": "b"}),
	})

	assert.Empty(t, mailer.sent())
}

func TestHandleChangeQueueMissing(t *testing.T) {
	store := seedStore(t, nil)
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: true}, store, mailer)

	after := map[string]any{
		"id": "i1", "queueId": "q-deleted",
		"description": "orphaned",
		"developer":   map[string]any{"uid": "id-jane-doe", "email": "jane.doe@example.com"},
	}
	notifier.HandleChange(context.Background(), docstore.WriteEvent{
		Path:   "queues/q-deleted/items/i1",
		Before: docstore.NewSnapshot("queues/q-deleted/items/i1", nil),
		After:  docstore.NewSnapshot("queues/q-deleted/items/i1", after),
	})

	assert.Empty(t, mailer.sent())
}

func TestHandleChangeNoRecipients(t *testing.T) {
	store := seedStore(t, nil)
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: true}, store, mailer)

	// Only the actor is involved, and the actor is excluded.
	after := map[string]any{
		"id": "i1", "queueId": "q1",
		"description": "self change",
		"developer":   map[string]any{"uid": "id-john-roe", "email": "john.roe@example.com"},
		"updatedBy":   "users/id-john-roe",
	}
	notifier.HandleChange(context.Background(), docstore.WriteEvent{
		Path:   itemPath,
		Before: docstore.NewSnapshot(itemPath, nil),
		After:  docstore.NewSnapshot(itemPath, after),
	})

	assert.Empty(t, mailer.sent())
}

func TestHandleChangeDisabledSkipsAllReads(t *testing.T) {
	store := seedStore(t, nil)
	counting := &countingStore{Store: store}
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: false}, counting, mailer)

	notifier.HandleChange(context.Background(), updateEvent())

	assert.Empty(t, mailer.sent())
	assert.Zero(t, counting.gets.Load(), "disabled pipeline must perform no database reads")
}

func TestHandleChangeMailerFailureIsSwallowed(t *testing.T) {
	store := seedStore(t, []map[string]any{
		{"uid": "u-w", "email": "watcher@example.com"},
	})
	mailer := &fakeMailer{err: errors.New("provider rejected the batch")}
	notifier := newNotifier(Options{Enabled: true}, store, mailer)

	// Must not panic or propagate; the trigger resolves neutrally.
	notifier.HandleChange(context.Background(), updateEvent())
	assert.Empty(t, mailer.sent())
}

func TestHandleChangeIsIdempotentPerEvent(t *testing.T) {
	store := seedStore(t, nil)
	mailer := &fakeMailer{}
	notifier := newNotifier(Options{Enabled: true, FromEmail: "queue@example.com"}, store, mailer)

	ev := updateEvent()
	notifier.HandleChange(context.Background(), ev)
	notifier.HandleChange(context.Background(), ev)

	batches := mailer.sent()
	require.Len(t, batches, 2)
	require.Equal(t, len(batches[0]), len(batches[1]))
	for i := range batches[0] {
		assert.Equal(t, batches[0][i], batches[1][i], "re-processing the same event must produce identical notifications")
	}
}
