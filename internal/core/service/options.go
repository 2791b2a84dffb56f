package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

const (
	tracerName        = "github.com/rl1809/wms-approval/internal/core/service"
	idempotencyPrefix = "idempotency:submit:"
	maxAuditDetails   = 1024
)

// TransitionRecorder observes every engine operation, successful or not.
type TransitionRecorder interface {
	ObserveTransition(operation string, elapsed time.Duration, err error)
}

type Option func(*options)

type options struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics TransitionRecorder
	audit   port.AuditSink
	guard   port.IdempotencyGuard
	catalog port.Catalog
	now     func() time.Time
	newID   func() string
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func WithMetrics(metrics TransitionRecorder) Option {
	return func(o *options) { o.metrics = metrics }
}

func WithAuditSink(sink port.AuditSink) Option {
	return func(o *options) { o.audit = sink }
}

// WithIdempotencyGuard enables duplicate detection for submissions carrying a request id.
func WithIdempotencyGuard(guard port.IdempotencyGuard) Option {
	return func(o *options) { o.guard = guard }
}

// WithCatalog enriches stock snapshots with product details.
func WithCatalog(catalog port.Catalog) Option {
	return func(o *options) { o.catalog = catalog }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// begin opens a span for operation and returns the func that closes it.
func (o *options) begin(ctx context.Context, operation string, actor domain.User, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	attrs = append(attrs, attribute.String("actor.id", actor.ID))
	ctx, span := o.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if o.metrics != nil {
			o.metrics.ObserveTransition(operation, time.Since(started), err)
		}
	}
}

// acquire claims requestID for actor. The returned release must be called
// when the submission fails so that the caller can retry.
func (o *options) acquire(ctx context.Context, actor, requestID string) (func(), error) {
	if o.guard == nil || requestID == "" {
		return func() {}, nil
	}

	key := idempotencyPrefix + actor + ":" + requestID
	ok, err := o.guard.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: request %s", domain.ErrDuplicateRequest, requestID)
	}

	return func() {
		if err := o.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			o.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (o *options) emit(ctx context.Context, record domain.AuditRecord) {
	if o.audit == nil {
		return
	}
	record.Details = sanitizeDetails(record.Details)
	if record.At.IsZero() {
		record.At = o.now()
	}
	if err := o.audit.Record(ctx, record); err != nil {
		o.logger.Warn("audit record dropped",
			zap.String("module", record.Module),
			zap.String("action", record.Action),
			zap.Error(err),
		)
	}
}

func sanitizeDetails(details string) string {
	trimmed := strings.TrimSpace(details)
	runes := []rune(trimmed)
	if len(runes) <= maxAuditDetails {
		return trimmed
	}
	return string(runes[:maxAuditDetails-3]) + "..."
}

func requireRole(actor domain.User, roles ...domain.Role) error {
	if actor.HasAnyRole(roles...) {
		return nil
	}
	return fmt.Errorf("%w: user %s", domain.ErrForbidden, actor.ID)
}
