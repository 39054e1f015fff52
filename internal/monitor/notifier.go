package monitor

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/email"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
	"github.com/contoso-cloud/testexec-controlplane/internal/webhook"
)

// notificationPayload is the JSON body posted to configured webhook
// URLs.
type notificationPayload struct {
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Severity   string            `json:"severity"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// Notifier implements SendNotification (§4.7 step 4): it always logs a
// trace with matching severity, and conditionally dispatches email and
// webhook transports. All transport failures are logged only, never
// re-raised.
type Notifier struct {
	emailSender   email.Sender
	webhookSender webhook.Sender
}

// NewNotifier builds a Notifier over the given transports.
func NewNotifier(emailSender email.Sender, webhookSender webhook.Sender) *Notifier {
	return &Notifier{emailSender: emailSender, webhookSender: webhookSender}
}

// SendNotification dispatches title/message/severity/dimensions through
// every enabled transport in settings.
func (n *Notifier) SendNotification(ctx context.Context, title, message string, severity policy.AlertSeverity, dimensions map[string]string, settings policy.NotificationSettings) {
	logAtSeverity(severity, title, message)

	if settings.EmailEnabledForSeverity[severity] && n.emailSender != nil {
		if err := n.emailSender.Send(ctx, nil, title, message); err != nil {
			klog.Warningf("monitor: sending alert email %q: %v", title, err)
		}
	}

	if settings.WebhookEnabled && n.webhookSender != nil {
		payload := notificationPayload{Title: title, Message: message, Severity: string(severity), Dimensions: dimensions}
		for _, url := range settings.WebhookURLs {
			if err := n.webhookSender.Send(ctx, url, payload); err != nil {
				klog.Warningf("monitor: posting alert webhook to %s: %v", url, err)
			}
		}
	}
}

func logAtSeverity(severity policy.AlertSeverity, title, message string) {
	switch severity {
	case policy.SeverityCritical:
		klog.Errorf("%s: %s", title, message)
	case policy.SeverityWarning:
		klog.Warningf("%s: %s", title, message)
	default:
		klog.Infof("%s: %s", title, message)
	}
}
