package messaging

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaBus implements Bus on top of segmentio/kafka-go, matching the
// "Messaging:{Provider,Kafka:{BootstrapServers,TestResultsTopic}}"
// configuration shape §6 names.
type KafkaBus struct {
	writer *kafka.Writer
}

// NewKafkaBus builds a KafkaBus that writes to defaultTopic on the given
// brokers. Publish may still target a different topic per call.
func NewKafkaBus(brokers []string, defaultTopic string) *KafkaBus {
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        defaultTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (b *KafkaBus) Publish(ctx context.Context, topic, key string, value []byte) error {
	msg := kafka.Message{Key: []byte(key), Value: value}
	w := b.writer
	if topic != "" && topic != b.writer.Topic {
		w = &kafka.Writer{
			Addr:         b.writer.Addr,
			Topic:        topic,
			Balancer:     b.writer.Balancer,
			RequiredAcks: b.writer.RequiredAcks,
		}
		defer w.Close()
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: publishing to %q: %w", topic, err)
	}
	return nil
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

var _ Bus = (*KafkaBus)(nil)
