package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

func startFlow(t *testing.T, f *fixture, approver string) *domain.ApprovalFlow {
	t.Helper()
	var flow *domain.ApprovalFlow
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx port.Tx) error {
		var err error
		flow, err = f.workflow.Start(ctx, tx, operator.ID, domain.BusinessInventoryOut, approver)
		return err
	})
	require.NoError(t, err)
	return flow
}

func TestWorkflow_Start(t *testing.T) {
	f := newFixture(t)

	flow := startFlow(t, f, manager.ID)
	assert.Equal(t, domain.ApprovalApproving, flow.Status)
	assert.Equal(t, manager.ID, flow.Approver)
	require.Len(t, flow.Nodes, 1)
	assert.Equal(t, domain.ResultPending, flow.Nodes[0].Result)
	assert.Nil(t, flow.Nodes[0].DecidedAt)

	stored, err := f.store.FindFlow(context.Background(), flow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.BusinessInventoryOut, stored.BusinessType)
}

func TestWorkflow_Decide(t *testing.T) {
	tests := []struct {
		name     string
		approved bool
		status   domain.ApprovalStatus
		result   domain.ApprovalResult
	}{
		{"approve", true, domain.ApprovalApproved, domain.ResultApproved},
		{"reject", false, domain.ApprovalRejected, domain.ResultRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			flow := startFlow(t, f, manager.ID)

			var decision *Decision
			err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx port.Tx) error {
				var err error
				decision, err = f.workflow.Decide(ctx, tx, flow.ID, manager, tt.approved, "looks fine")
				return err
			})
			require.NoError(t, err)
			assert.Empty(t, decision.OverriddenApprover)
			assert.Equal(t, tt.status, decision.Flow.Status)
			assert.Equal(t, tt.result, decision.Flow.Nodes[0].Result)
			assert.Equal(t, "looks fine", decision.Flow.Nodes[0].Comment)
			assert.NotNil(t, decision.Flow.Nodes[0].DecidedAt)
		})
	}
}

func TestWorkflow_DecideByOtherApprover(t *testing.T) {
	f := newFixture(t)
	flow := startFlow(t, f, manager.ID)

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx port.Tx) error {
		_, err := f.workflow.Decide(ctx, tx, flow.ID, otherManager, true, "")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotAssignedApprover)

	stored, err := f.store.FindFlow(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproving, stored.Status)
}

func TestWorkflow_AdminOverride(t *testing.T) {
	f := newFixture(t)
	flow := startFlow(t, f, manager.ID)

	var decision *Decision
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx port.Tx) error {
		var err error
		decision, err = f.workflow.Decide(ctx, tx, flow.ID, admin, true, "covering")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, manager.ID, decision.OverriddenApprover)
	assert.Equal(t, admin.ID, decision.Flow.Approver)
	require.Len(t, decision.Flow.Nodes, 1)
	assert.Equal(t, admin.ID, decision.Flow.Nodes[0].Approver)
}

func TestWorkflow_DecideMissingFlow(t *testing.T) {
	f := newFixture(t)

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx port.Tx) error {
		_, err := f.workflow.Decide(ctx, tx, "missing", manager, true, "")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestWorkflow_PendingFlows(t *testing.T) {
	f := newFixture(t)
	first := startFlow(t, f, manager.ID)
	startFlow(t, f, otherManager.ID)
	decided := startFlow(t, f, manager.ID)

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx port.Tx) error {
		_, err := f.workflow.Decide(ctx, tx, decided.ID, manager, false, "")
		return err
	})
	require.NoError(t, err)

	flows, err := f.workflow.PendingFlows(context.Background(), manager)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, first.ID, flows[0].ID)

	_, err = f.workflow.PendingFlows(context.Background(), operator)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
