package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Producer is a topic-agnostic writer; the topic travels on each message so
// one producer serves every back-office event stream.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish streams one event. Keys are order IDs so all events for an order
// land on the same partition in order.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	err := p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
