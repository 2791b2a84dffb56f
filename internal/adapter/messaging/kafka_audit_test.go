package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/adapter/audit"
	"github.com/rl1809/wms-approval/internal/core/domain"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msgs...)
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaAuditSink_Record(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	producer := &fakeProducer{}
	sink := NewKafkaAuditSink(producer)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	err := sink.Record(ctx, domain.AuditRecord{
		Module: "procurement", Action: "CREATE", Details: "created", Operator: "buyer", At: at,
	})
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "procurement", string(msg.Key))

	var event AuditEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "CREATE", event.Action)
	assert.True(t, event.At.Equal(at))

	assert.Contains(t, header(msg, "traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	require.NoError(t, sink.Close())
	assert.True(t, producer.closed)
}

func TestKafkaAuditSink_PublishError(t *testing.T) {
	boom := errors.New("leader not available")
	sink := NewKafkaAuditSink(&fakeProducer{err: boom})

	err := sink.Record(context.Background(), domain.AuditRecord{Module: "inventory"})
	assert.ErrorIs(t, err, boom)
}

func TestNewAuditWriter(t *testing.T) {
	w := NewAuditWriter("localhost:9092", "wms.audit")
	defer w.Close()

	assert.Equal(t, "wms.audit", w.Topic)
	assert.Equal(t, BatchSize, w.BatchSize)
}

func TestKafkaAuditSink_BehindDispatcherKeepsTraceparent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	producer := &fakeProducer{}
	d := audit.NewDispatcher(NewKafkaAuditSink(producer), zap.NewNop(), 2, 10)

	traceID, _ := trace.TraceIDFromHex("5b8efff798038103d269b633813fc60c")
	spanID, _ := trace.SpanIDFromHex("eee19b7ec3c1b174")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	require.NoError(t, d.Record(ctx, domain.AuditRecord{Module: "inventory", Action: "EXECUTE", Operator: "mgr"}))
	d.Close()

	require.Len(t, producer.messages, 1)
	traceparent := header(producer.messages[0], "traceparent")
	assert.Contains(t, traceparent, "5b8efff798038103d269b633813fc60c")
	assert.Contains(t, traceparent, "eee19b7ec3c1b174")
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
