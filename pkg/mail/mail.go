// Package mail is the login-code delivery collaborator. The gateway core
// only depends on the Sender interface; SendGrid is the production
// implementation and LogSender stands in when no API key is configured.
package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lexer-cc/lexer-gateway/pkg/observability/logging"
)

// Message is one outbound email.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages. Implementations must return an error on
// delivery failure so the caller can surface it as {success: false}.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender creates a sender using the given SendGrid API key.
func NewSendGridSender(apiKey string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewSingleEmail(
		sgmail.NewEmail("", msg.From),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid delivery failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender writes the message to the log instead of delivering it.
// Used in development when SG_KEY is unset; never for production.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	logging.Infof("Mail delivery disabled, would send to %s: %s", msg.To, msg.Text)
	return nil
}
