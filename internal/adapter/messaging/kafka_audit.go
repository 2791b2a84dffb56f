// Package messaging publishes audit records to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

const (
	BatchTimeout = 10 * time.Millisecond
	BatchSize    = 100
)

// MessageProducer is the part of *kafka.Writer the sink needs.
type MessageProducer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditEvent is the JSON payload of one audit message.
type AuditEvent struct {
	Module   string    `json:"module"`
	Action   string    `json:"action"`
	Details  string    `json:"details"`
	Operator string    `json:"operator"`
	At       time.Time `json:"at"`
}

type KafkaAuditSink struct {
	producer MessageProducer
}

func NewKafkaAuditSink(producer MessageProducer) *KafkaAuditSink {
	return &KafkaAuditSink{producer: producer}
}

func NewAuditWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: BatchTimeout,
		BatchSize:    BatchSize,
		RequiredAcks: kafka.RequireOne,
	}
}

// Record publishes the record keyed by module so that records of one module
// keep their order. The current trace context travels in the headers.
func (s *KafkaAuditSink) Record(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(AuditEvent(record))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafka.Message{
		Key:   []byte(record.Module),
		Value: payload,
	}
	for k, v := range carrier {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := s.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

func (s *KafkaAuditSink) Close() error {
	return s.producer.Close()
}
