package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultSendGridURL = "https://api.sendgrid.com/v3/mail/send"

// SendGridMailer delivers messages through the SendGrid v3 mail/send API.
// A batch becomes one request with one personalization per recipient.
type SendGridMailer struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSendGridMailer returns a mailer authenticated with the given API key.
func NewSendGridMailer(apiKey string) *SendGridMailer {
	return &SendGridMailer{
		apiKey:  apiKey,
		baseURL: defaultSendGridURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	Subject string      `json:"subject,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send implements Mailer. The first message supplies the shared sender,
// subject and body; every message contributes its own recipient.
func (m *SendGridMailer) Send(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	first := msgs[0]
	payload := sgPayload{
		From:    sgAddress{Email: first.From, Name: first.FromName},
		Subject: first.Subject,
	}
	for _, msg := range msgs {
		payload.Personalizations = append(payload.Personalizations, sgPersonalization{
			To:      []sgAddress{{Email: msg.To}},
			Subject: msg.Subject,
		})
	}
	// SendGrid requires text/plain before text/html.
	if first.Text != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/plain", Value: first.Text})
	}
	if first.HTML != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: first.HTML})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sendgrid: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("sendgrid: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

var _ Mailer = (*SendGridMailer)(nil)
