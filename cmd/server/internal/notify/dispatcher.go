package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
	"github.com/houzhh15/mergeq/cmd/server/internal/mail"
	"github.com/houzhh15/mergeq/pkg/metrics"
)

// Skip reasons recorded in logs, metrics and the audit trail.
const (
	SkipDisabled     = "disabled"
	SkipNoChange     = "no_change"
	SkipQueueMissing = "queue_missing"
	SkipNoRecipients = "no_recipients"
	SkipError        = "error"
)

// Renderer is the template contract consumed by the dispatcher.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// Template identifiers requested from the renderer.
const (
	templateHTML = "queue-item-change"
	templateText = "queue-item-change-text"
)

// Options is the configuration injected into the pipeline entry point.
type Options struct {
	// Enabled gates the whole pipeline. Checked before any store read.
	Enabled bool
	// FromEmail/FromName identify the sender on outgoing messages.
	FromEmail string
	FromName  string
}

// Notifier is the pipeline entry point wired as the item write trigger.
type Notifier struct {
	opts       Options
	summarizer *Summarizer
	renderer   Renderer
	mailer     mail.Mailer
	audit      *AuditLog
	log        *slog.Logger
}

// NewNotifier assembles the pipeline.
func NewNotifier(opts Options, store docstore.Store, renderer Renderer, mailer mail.Mailer, audit *AuditLog, log *slog.Logger) *Notifier {
	return &Notifier{
		opts:       opts,
		summarizer: NewSummarizer(store),
		renderer:   renderer,
		mailer:     mailer,
		audit:      audit,
		log:        log,
	}
}

// HandleChange processes one document write. It never fails the trigger:
// every outcome, including a provider error, resolves neutrally so the
// hosting runner does not re-deliver the event.
func (n *Notifier) HandleChange(ctx context.Context, ev docstore.WriteEvent) {
	start := time.Now()
	defer func() {
		metrics.RecordPipelineDuration(time.Since(start).Seconds())
	}()

	if !n.opts.Enabled {
		n.log.Info("notifications are disabled", "path", ev.Path)
		metrics.RecordPipelineSkip(SkipDisabled)
		return
	}

	summary, ok, err := n.summarizer.Summarize(ctx, ev)
	if err != nil {
		n.log.Error("change summary failed", "path", ev.Path, "error", err)
		metrics.RecordPipelineSkip(SkipError)
		n.audit.LogSkip(ev.Path, SkipError)
		return
	}
	if !ok {
		n.log.Info("no watched field changed", "path", ev.Path)
		metrics.RecordPipelineSkip(SkipNoChange)
		return
	}

	n.log.Info("changed fields",
		"item", summary.Latest.ID,
		"fields", summary.Fields,
		"change_type", summary.ChangeType.Label(),
	)

	if summary.Queue == nil {
		n.log.Info("queue no longer exists, skipping notifications", "item", summary.Latest.ID)
		metrics.RecordPipelineSkip(SkipQueueMissing)
		n.audit.LogSkip(ev.Path, SkipQueueMissing)
		return
	}

	// Diff formatting and recipient resolution have no data dependency on
	// each other.
	var (
		recipients []string
		htmlBody   string
		textBody   string
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		diff := FormatChanges(summary)
		data := map[string]any{"Summary": summary, "Diff": diff}
		var renderErr error
		if htmlBody, renderErr = n.renderer.Render(templateHTML, data); renderErr != nil {
			return renderErr
		}
		textBody, renderErr = n.renderer.Render(templateText, data)
		return renderErr
	})
	g.Go(func() error {
		recipients = Recipients(summary, ev.Before, ev.After)
		return nil
	})
	if err := g.Wait(); err != nil {
		n.log.Error("notification rendering failed", "item", summary.Latest.ID, "error", err)
		metrics.RecordPipelineSkip(SkipError)
		n.audit.LogSkip(ev.Path, SkipError)
		return
	}

	if len(recipients) == 0 {
		n.log.Info("no notification recipients", "item", summary.Latest.ID)
		metrics.RecordPipelineSkip(SkipNoRecipients)
		n.audit.LogSkip(ev.Path, SkipNoRecipients)
		return
	}

	subject := n.subject(summary)
	msgs := make([]mail.Message, 0, len(recipients))
	for _, to := range recipients {
		msgs = append(msgs, mail.Message{
			To:       to,
			From:     n.opts.FromEmail,
			FromName: n.opts.FromName,
			Subject:  subject,
			Text:     textBody,
			HTML:     htmlBody,
		})
	}

	changeType := strings.ToLower(summary.ChangeType.Label())
	if err := n.mailer.Send(ctx, msgs); err != nil {
		// Swallowed: failing the trigger would cause the hosting runner to
		// re-run the entire pipeline, and no retry is wanted here.
		n.log.Error("error sending notification email",
			"item", summary.Latest.ID,
			"recipients", len(recipients),
			"error", err,
		)
		metrics.RecordNotificationsSent(changeType, "error", len(recipients))
		n.audit.LogDispatch(summary, recipients, subject, err)
		return
	}

	n.log.Info("notification sent",
		"item", summary.Latest.ID,
		"recipients", len(recipients),
		"subject", subject,
	)
	metrics.RecordNotificationsSent(changeType, "sent", len(recipients))
	n.audit.LogDispatch(summary, recipients, subject, nil)
}

func (n *Notifier) subject(summary *ChangeSummary) string {
	var b strings.Builder
	if summary.Latest.TicketNumber != "" {
		b.WriteString(summary.Latest.TicketNumber)
		b.WriteString(" | ")
	}
	b.WriteString("Merge Task ")
	b.WriteString(summary.ChangeType.Label())
	return b.String()
}
