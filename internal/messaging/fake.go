package messaging

import (
	"context"
	"sync"
)

// Message is one recorded publish call, kept by Fake for assertions.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Fake is an in-memory Bus used by tests.
type Fake struct {
	mu       sync.Mutex
	messages []Message
}

// NewFake returns an empty Fake bus.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Publish(ctx context.Context, topic, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, Message{Topic: topic, Key: key, Value: value})
	return nil
}

func (f *Fake) Close() error { return nil }

// Messages returns every message published so far.
func (f *Fake) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

var _ Bus = (*Fake)(nil)
