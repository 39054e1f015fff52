// Package messaging defines the message-bus contract the Job Tracker
// publishes result metadata through (§1: "the message-bus producer" is
// an external collaborator) and a Kafka implementation of it.
package messaging

import "context"

// Bus is the narrow publish contract the core depends on.
type Bus interface {
	// Publish writes value to topic keyed by key.
	Publish(ctx context.Context, topic, key string, value []byte) error
	// Close releases any underlying connection.
	Close() error
}
