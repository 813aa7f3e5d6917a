// Package mail defines the outbound email sink and its provider adapters.
package mail

import "context"

// Message is one outbound email. Batched sends share subject and body; the
// sink contract still carries them per message.
type Message struct {
	To       string
	From     string
	FromName string
	Subject  string
	Text     string
	HTML     string
}

// Mailer delivers a batch of messages in a single provider call.
type Mailer interface {
	Send(ctx context.Context, msgs []Message) error
}
