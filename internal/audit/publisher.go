package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic is where audit records are mirrored for downstream consumers.
const DefaultTopic = "claimgate.audit"

// Publisher mirrors audit records onto a Kafka topic. Publication is
// best-effort: the store is the system of record, the topic is a feed.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish sends the record asynchronously. Delivery failures are logged,
// never surfaced to the evaluation path.
func (p *Publisher) Publish(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	kr := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(record.Tenant),
		Value: payload,
	}
	p.client.Produce(ctx, kr, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("audit publish failed",
				"topic", p.topic,
				"audit_id", record.AuditID,
				"error", err,
			)
		}
	})
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}

// PublishingStore decorates a Store so every successful Save is mirrored
// onto the audit topic. The mirror is best-effort; only the store write
// decides the Save outcome.
type PublishingStore struct {
	Store
	publisher *Publisher
	logger    *slog.Logger
}

func NewPublishingStore(store Store, publisher *Publisher, logger *slog.Logger) *PublishingStore {
	return &PublishingStore{Store: store, publisher: publisher, logger: logger}
}

func (s *PublishingStore) Save(ctx context.Context, record Record) error {
	if err := s.Store.Save(ctx, record); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, record); err != nil {
		s.logger.Warn("audit mirror skipped", "audit_id", record.AuditID, "error", err)
	}
	return nil
}
