package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

const (
	idempotencyKeyTTL = 24 * time.Hour
	auditStream       = "wms:audit"
	auditStreamMaxLen = 100000
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// Acquire sets key for idempotency check, returns false if it already exists.
func (r *RedisAdapter) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Record appends the audit record to a capped stream.
func (r *RedisAdapter) Record(ctx context.Context, record domain.AuditRecord) error {
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: auditStream,
		MaxLen: auditStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"module":   record.Module,
			"action":   record.Action,
			"details":  record.Details,
			"operator": record.Operator,
			"at":       record.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// RecentAudit reads up to count records, newest first.
func (r *RedisAdapter) RecentAudit(ctx context.Context, count int64) ([]domain.AuditRecord, error) {
	msgs, err := r.client.XRevRangeN(ctx, auditStream, "+", "-", count).Result()
	if err != nil {
		return nil, err
	}

	records := make([]domain.AuditRecord, 0, len(msgs))
	for _, msg := range msgs {
		record := domain.AuditRecord{
			Module:   stringValue(msg.Values["module"]),
			Action:   stringValue(msg.Values["action"]),
			Details:  stringValue(msg.Values["details"]),
			Operator: stringValue(msg.Values["operator"]),
		}
		if at, err := time.Parse(time.RFC3339Nano, stringValue(msg.Values["at"])); err == nil {
			record.At = at
		}
		records = append(records, record)
	}
	return records, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
