// Package email sends game invitations.
package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers an invitation link to a prospective opponent.
type Sender interface {
	SendInvitation(ctx context.Context, to, inviterName, link string) error
}

// SendGridSender sends invitations through the SendGrid API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

var _ Sender = (*SendGridSender)(nil)

// NewSendGridSender builds a sender using the given API key and from
// address.
func NewSendGridSender(apiKey, fromName, fromAddress string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (s *SendGridSender) SendInvitation(ctx context.Context, to, inviterName, link string) error {
	subject := fmt.Sprintf("%s invited you to play checkers!", inviterName)
	body := fmt.Sprintf("Click this link to join the game: %s", link)
	html := fmt.Sprintf(`<a href=%q>Click here to join the game!</a>`, link)

	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), body, html)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending invitation: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sending invitation: sendgrid returned %d", resp.StatusCode)
	}
	return nil
}

// NopSender drops invitations. Used in development when no SendGrid key is
// configured.
type NopSender struct{}

var _ Sender = NopSender{}

func (NopSender) SendInvitation(context.Context, string, string, string) error {
	return nil
}
