package paymentstub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/axel-fz/echostore/internal/poller"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes completions to the topic the storefront consumes,
// keyed by session so one session's events stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  poller.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, c poller.Completion) error {
	value, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal completion failed: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(c.SessionID), Value: value}); err != nil {
		return fmt.Errorf("publish completion failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
