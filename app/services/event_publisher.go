package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/segmentio/kafka-go"
)

// AnalyticsMessage is the wire shape of an analytics event on the bus
type AnalyticsMessage struct {
	ID        uint           `json:"id"`
	Action    string         `json:"action"`
	Email     *string        `json:"email,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	UserAgent *string        `json:"user_agent,omitempty"`
	Referrer  *string        `json:"referrer,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventPublisher fans analytics events out to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, msg AnalyticsMessage) error
	Close() error
}

// KafkaEventPublisher writes analytics events to a Kafka topic
type KafkaEventPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaEventPublisher(cfg config.KafkaConfig) (*KafkaEventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.AnalyticsTopic == "" {
		return nil, fmt.Errorf("kafka analytics topic is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.AnalyticsTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}, nil
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, msg AnalyticsMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Action),
		Value: value,
		Time:  msg.Timestamp,
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher drops every event
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, AnalyticsMessage) error { return nil }
func (NoopEventPublisher) Close() error                                    { return nil }

// NewEventPublisher returns a Kafka publisher when enabled, otherwise a no-op
func NewEventPublisher(cfg config.KafkaConfig) (EventPublisher, error) {
	if !cfg.Enabled {
		return NoopEventPublisher{}, nil
	}
	return NewKafkaEventPublisher(cfg)
}
