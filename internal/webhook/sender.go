// Package webhook POSTs alert notifications to operator-configured
// URLs. No ecosystem webhook client appears anywhere in this corpus,
// and a JSON POST-and-check-status is not a place a library earns its
// keep over net/http (documented in DESIGN.md), so this one piece is
// stdlib by design.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Sender is the narrow contract Monitoring & Alerting depends on.
type Sender interface {
	Send(ctx context.Context, url string, payload any) error
}

// HTTPSender implements Sender with a plain net/http JSON POST.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender builds an HTTPSender using client, or http.DefaultClient
// if client is nil.
func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Send(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: posting to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook: %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

var _ Sender = (*HTTPSender)(nil)
