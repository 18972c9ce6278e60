package kafka_wrapper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	TopicPrefix         string   `yaml:"topic_prefix"`
	BatchSize           int      `yaml:"batch_size"`
	BatchBytes          int64    `yaml:"batch_bytes"`
	BatchTimeoutMs      int64    `yaml:"batch_timeout_ms"`
	RequireAllAcks      bool     `yaml:"require_all_acks"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
}

type Producer struct {
	w *kafka.Writer
}

// NewProducer creates a writer with hash partitioning so rows keyed by
// symbol land on one partition in publish order.
func NewProducer(cfg *KafkaConfig) *Producer {
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	batchBytes := cfg.BatchBytes
	if batchBytes == 0 {
		batchBytes = 1 << 20
	}
	batchTimeout := time.Duration(cfg.BatchTimeoutMs) * time.Millisecond
	if batchTimeout == 0 {
		batchTimeout = 50 * time.Millisecond
	}
	acks := kafka.RequireOne
	if cfg.RequireAllAcks {
		acks = kafka.RequireAll
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              batchSize,
		BatchBytes:             batchBytes,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           acks,
	}
	return &Producer{w: wr}
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value []byte) error {
	if p == nil || p.w == nil {
		return errors.New("producer not initialized")
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, topic string, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, []byte(key), b)
}

func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
