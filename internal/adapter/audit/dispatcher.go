package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

var (
	ErrQueueFull = errors.New("audit queue full")
	ErrClosed    = errors.New("audit dispatcher closed")
)

const deliveryTimeout = 5 * time.Second

// queued keeps the span of the recording call so that sinks can propagate it.
type queued struct {
	record domain.AuditRecord
	span   trace.SpanContext
}

// Dispatcher hands records to a pool of workers so that slow sinks never
// hold up the engine. Records that do not fit in the queue are rejected.
type Dispatcher struct {
	sink   port.AuditSink
	logger *zap.Logger
	queue  chan queued

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink port.AuditSink, logger *zap.Logger, workerCount, queueSize int) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		queue:  make(chan queued, queueSize),
	}
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	return d
}

func (d *Dispatcher) Record(ctx context.Context, record domain.AuditRecord) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- queued{record: record, span: trace.SpanContextFromContext(ctx)}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting records and waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) workerLoop(id int) {
	for item := range d.queue {
		record := item.record
		ctx := context.Background()
		if item.span.IsValid() {
			ctx = trace.ContextWithSpanContext(ctx, item.span)
		}
		ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		if err := d.sink.Record(ctx, record); err != nil {
			d.logger.Warn("audit delivery failed",
				zap.Int("worker", id),
				zap.String("module", record.Module),
				zap.String("action", record.Action),
				zap.Error(err),
			)
		}
		cancel()
	}
}
