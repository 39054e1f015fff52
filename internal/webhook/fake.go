package webhook

import (
	"context"
	"sync"
)

// SentPayload is one recorded Send call.
type SentPayload struct {
	URL     string
	Payload any
}

// Fake is an in-memory Sender used by tests.
type Fake struct {
	mu   sync.Mutex
	sent []SentPayload
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Send(ctx context.Context, url string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentPayload{URL: url, Payload: payload})
	return nil
}

func (f *Fake) Sent() []SentPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentPayload(nil), f.sent...)
}

var _ Sender = (*Fake)(nil)
