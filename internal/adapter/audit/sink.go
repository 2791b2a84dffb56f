// Package audit delivers audit records to logs and downstream sinks.
package audit

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

// ZapSink writes each record as one structured log line.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Record(_ context.Context, record domain.AuditRecord) error {
	s.logger.Info("audit",
		zap.String("module", record.Module),
		zap.String("action", record.Action),
		zap.String("details", record.Details),
		zap.String("operator", record.Operator),
		zap.Time("at", record.At),
	)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []port.AuditSink

func (f Fanout) Record(ctx context.Context, record domain.AuditRecord) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
