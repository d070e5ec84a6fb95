// Package kafka produces access events to a Kafka-compatible broker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"badgegate/internal/platform/config"
)

// Producer writes keyed records synchronously. Records with the same key land
// on the same partition, so events for one badge stay ordered.
type Producer struct {
	client         *kgo.Client
	logger         *slog.Logger
	produceTimeout time.Duration
}

// Option configures a Producer.
type Option func(*Producer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// NewProducer connects lazily to cfg.Brokers. The client is idempotent with
// acks from all in-sync replicas.
func NewProducer(cfg config.Kafka, opts ...Option) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.Topic != "" {
		kopts = append(kopts, kgo.DefaultProduceTopic(cfg.Topic))
	}
	if cfg.Linger > 0 {
		kopts = append(kopts, kgo.ProducerLinger(cfg.Linger))
	}
	if cfg.ProduceTimeout > 0 {
		kopts = append(kopts, kgo.ProduceRequestTimeout(cfg.ProduceTimeout))
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}

	p := &Producer{
		client:         client,
		logger:         slog.Default(),
		produceTimeout: cfg.ProduceTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish produces one record and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if p.produceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.produceTimeout)
		defer cancel()
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopic creates topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		switch {
		case r.Err == nil:
			p.logger.InfoContext(ctx, "kafka topic created",
				"topic", r.Topic,
				"partitions", partitions,
				"replication_factor", replicationFactor,
			)
		case errors.Is(r.Err, kerr.TopicAlreadyExists):
			p.logger.DebugContext(ctx, "kafka topic already exists", "topic", r.Topic)
		default:
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Health checks that at least one broker is reachable.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
