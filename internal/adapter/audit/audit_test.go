package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

type recordingSink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	spans   []trace.SpanContext
	err     error
	block   chan struct{}
}

func (s *recordingSink) Record(ctx context.Context, record domain.AuditRecord) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	s.spans = append(s.spans, trace.SpanContextFromContext(ctx))
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := sink.Record(context.Background(), domain.AuditRecord{
		Module: "inventory", Action: "SUBMIT_INBOUND", Details: "d", Operator: "op", At: at,
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, "SUBMIT_INBOUND", fields["action"])
	assert.Equal(t, "op", fields["operator"])
}

func TestFanout_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSink{}
	failing := &recordingSink{err: boom}

	err := Fanout{ok, failing}.Record(context.Background(), domain.AuditRecord{Action: "CREATE"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
}

func TestDispatcher_DeliversAllOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop(), 4, 100)

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Record(context.Background(), domain.AuditRecord{Action: "CREATE"}))
	}
	d.Close()

	assert.Equal(t, 50, sink.count())
	assert.ErrorIs(t, d.Record(context.Background(), domain.AuditRecord{}), ErrClosed)
	d.Close()
}

func TestDispatcher_QueueFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(sink, zap.NewNop(), 1, 1)

	// one record held by the worker, one in the queue
	require.NoError(t, d.Record(context.Background(), domain.AuditRecord{}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Record(context.Background(), domain.AuditRecord{}))

	assert.ErrorIs(t, d.Record(context.Background(), domain.AuditRecord{}), ErrQueueFull)

	close(sink.block)
	d.Close()
	assert.Equal(t, 2, sink.count())
}

func TestDispatcher_LogsFailedDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := &recordingSink{err: errors.New("broker down")}
	d := NewDispatcher(sink, zap.New(core), 1, 10)

	require.NoError(t, d.Record(context.Background(), domain.AuditRecord{Module: "procurement", Action: "APPROVE"}))
	d.Close()

	assert.Equal(t, 1, logs.FilterMessage("audit delivery failed").Len())
}

func TestDispatcher_KeepsCallerSpan(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop(), 1, 10)

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	span := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	})
	ctx, cancel := context.WithCancel(trace.ContextWithSpanContext(context.Background(), span))

	require.NoError(t, d.Record(ctx, domain.AuditRecord{Action: "APPROVE"}))
	// the request finishing must not cancel delivery
	cancel()
	require.NoError(t, d.Record(context.Background(), domain.AuditRecord{Action: "CREATE"}))
	d.Close()

	require.Len(t, sink.spans, 2)
	assert.Equal(t, traceID, sink.spans[0].TraceID())
	assert.Equal(t, spanID, sink.spans[0].SpanID())
	assert.False(t, sink.spans[1].IsValid())
}
