package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaExporter streams persisted entries to a Kafka topic for downstream
// retention or SIEM ingestion. Messages are keyed by entity so one entity's
// history stays ordered within a partition.
type KafkaExporter struct {
	w     messageWriter
	topic string
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaExporter(brokers []string, topic string) *KafkaExporter {
	return &KafkaExporter{topic: topic, w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}}
}

func (k *KafkaExporter) Publish(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(entityKey(e)),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(e.Action)},
			{Key: "entity_type", Value: []byte(e.EntityType)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka export to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaExporter) Close() error { return k.w.Close() }

func entityKey(e Entry) string {
	if e.EntityID != nil {
		return e.EntityType + ":" + *e.EntityID
	}
	return e.EntityType
}
