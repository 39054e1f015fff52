package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender implements Sender on top of sendgrid-go, matching the
// `Notifications:SendGrid:{ApiKey,SenderEmail}` configuration shape §6
// names.
type SendGridSender struct {
	client      *sendgrid.Client
	senderEmail string
	senderName  string
}

// NewSendGridSender builds a SendGridSender.
func NewSendGridSender(apiKey, senderEmail, senderName string) *SendGridSender {
	return &SendGridSender{
		client:      sendgrid.NewSendClient(apiKey),
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

func (s *SendGridSender) Send(ctx context.Context, toAddresses []string, subject, body string) error {
	from := mail.NewEmail(s.senderName, s.senderEmail)
	for _, to := range toAddresses {
		msg := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "")
		resp, err := s.client.SendWithContext(ctx, msg)
		if err != nil {
			return fmt.Errorf("email: sending to %s: %w", to, err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("email: sendgrid returned status %d for %s: %s", resp.StatusCode, to, resp.Body)
		}
	}
	return nil
}

var _ Sender = (*SendGridSender)(nil)
