package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/rl1809/wms-approval/internal/config"
	"github.com/rl1809/wms-approval/internal/core/domain"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "validation", Outcome(domain.ErrInsufficientStock))
	assert.Equal(t, "not_found", Outcome(domain.ErrFlowNotFound))
	assert.Equal(t, "conflict", Outcome(domain.ErrDuplicateRequest))
	assert.Equal(t, "authorization", Outcome(domain.ErrForbidden))
	assert.Equal(t, "invariant", Outcome(domain.ErrNegativeStock))
	assert.Equal(t, "error", Outcome(errors.New("io")))
}

func TestMetrics_ObserveTransition(t *testing.T) {
	m := NewMetrics()

	m.ObserveTransition("inventory.submit", 5*time.Millisecond, nil)
	m.ObserveTransition("inventory.submit", 5*time.Millisecond, domain.ErrInsufficientStock)
	m.ObserveTransition("inventory.submit", 5*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `wms_operations_total{operation="inventory.submit",outcome="ok"} 2`)
	assert.Contains(t, body, `wms_operations_total{operation="inventory.submit",outcome="validation"} 1`)
	assert.Contains(t, body, `wms_operation_duration_seconds_count{operation="inventory.submit"} 3`)
}

func TestSetupTracingSDK_NoEndpoint(t *testing.T) {
	tp, shutdown, err := SetupTracingSDK(context.Background(), config.OtelConfig{})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupLoggingSDK_NoEndpoint(t *testing.T) {
	shutdown, err := SetupLoggingSDK(context.Background(), config.OtelConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(zapcore.WarnLevel, false)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	require.NotNil(t, NewLogger(zapcore.InfoLevel, true))
}
