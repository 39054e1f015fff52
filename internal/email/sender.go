// Package email sends alert notifications through SendGrid, the
// transport spec.md §6 names via Notifications:SendGrid:{ApiKey,
// SenderEmail}.
package email

import "context"

// Sender is the narrow contract Monitoring & Alerting depends on.
type Sender interface {
	Send(ctx context.Context, toAddresses []string, subject, body string) error
}
