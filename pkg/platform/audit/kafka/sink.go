// Package kafka provides a Kafka-backed audit sink using franz-go. Events are
// produced synchronously so the publisher's sync mode stays fail-closed end
// to end; put the publisher in async mode when the producer latency must not
// stall the engine.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "consentgate/pkg/platform/audit"
)

// DefaultTopic is used when the configuration does not name one.
const DefaultTopic = "consentgate.audit"

// Sink produces audit events to a Kafka topic, keyed by widget id so all
// events of one widget land in one partition in order.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the Sink.
type Option func(*Sink)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(s *Sink) {
		s.topic = topic
	}
}

// WithLogger sets the logger used for topic-ensure warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// New connects to the brokers and ensures the topic exists. Topic creation
// failures are logged, not fatal: the broker may manage topics externally.
func New(ctx context.Context, brokers []string, opts ...Option) (*Sink, error) {
	s := &Sink{
		topic:  DefaultTopic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(s.topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	s.client = client

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, s.topic); err != nil {
		s.logger.Warn("audit topic ensure failed, continuing", "topic", s.topic, "error", err)
	}

	return s, nil
}

// wireEvent is the JSON document produced to Kafka.
type wireEvent struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	WidgetID  string `json:"widgetId"`
	VisitorID string `json:"visitorId,omitempty"`
	Action    string `json:"action"`
	Subject   string `json:"subject,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Append produces the event and waits for broker acknowledgement.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(wireEvent{
		Category:  string(event.Category),
		Timestamp: event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		WidgetID:  event.WidgetID,
		VisitorID: event.VisitorID,
		Action:    event.Action,
		Subject:   event.Subject,
		Decision:  event.Decision,
		Reason:    event.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.WidgetID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (s *Sink) Close() {
	s.client.Close()
}
