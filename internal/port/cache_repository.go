package port

import (
	"context"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

type IdempotencyGuard interface {
	// Acquire sets a key for idempotency check, returns false if already exists
	Acquire(ctx context.Context, key string) (bool, error)

	// Release drops the key so a failed request can be retried
	Release(ctx context.Context, key string) error
}

// AuditSink receives one record per committed transition. Failures are
// logged by the caller and never roll anything back.
type AuditSink interface {
	Record(ctx context.Context, record domain.AuditRecord) error
}

// AuditReader returns the most recent audit records, newest first.
type AuditReader interface {
	RecentAudit(ctx context.Context, count int64) ([]domain.AuditRecord, error)
}
