package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

func scenarioD(total string) SubmitProcurementRequest {
	return SubmitProcurementRequest{
		Title:         "restock",
		DeclaredTotal: decimal.RequireFromString(total),
		Items: []ProcurementItemRequest{
			{ProductID: 1, Quantity: 2, ExpectedPrice: price("10.00")},
			{ProductID: 2, Quantity: 3, ExpectedPrice: price("5.00")},
		},
	}
}

func TestProcurement_SubmitAndApprove(t *testing.T) {
	f := newFixture(t, domain.Stock{ProductID: 1, CurrentStock: 7})
	ctx := context.Background()

	view, err := f.procurement.Submit(ctx, purchaser, scenarioD("35.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.ProcurementSubmitted, view.Application.Status)
	assert.True(t, view.Application.TotalAmount.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, domain.BusinessProcurement, view.Flow.BusinessType)
	require.Len(t, view.Application.Items, 2)
	assert.True(t, view.Application.Items[1].ExpectedPrice.Equal(decimal.NewFromInt(5)))

	view, err = f.procurement.Approve(ctx, manager, view.Application.ID, true, "go ahead")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcurementApproved, view.Application.Status)
	assert.Equal(t, domain.ApprovalApproved, view.Flow.Status)

	// Procurement never touches the ledger
	assert.Equal(t, 7, f.stock(t, 1).CurrentStock)
	assert.Equal(t, []string{"CREATE", "APPROVE"}, f.audit.actions())
}

func TestProcurement_TotalMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.procurement.Submit(context.Background(), purchaser, scenarioD("34.99"))
	require.ErrorIs(t, err, domain.ErrTotalMismatch)
	assert.ErrorIs(t, err, domain.ErrValidation)

	apps, err := f.store.ListProcurementApplications(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestProcurement_CatalogPriceFallback(t *testing.T) {
	f := newFixture(t)

	view, err := f.procurement.Submit(context.Background(), purchaser, SubmitProcurementRequest{
		Title:         "crates",
		DeclaredTotal: decimal.RequireFromString("20"),
		Items:         []ProcurementItemRequest{{ProductID: 2, Quantity: 4}},
	})
	require.NoError(t, err)
	assert.True(t, view.Application.Items[0].ExpectedPrice.Equal(decimal.NewFromInt(5)))
}

func TestProcurement_RejectIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.procurement.Submit(ctx, purchaser, scenarioD("35"))
	require.NoError(t, err)
	id := view.Application.ID

	view, err = f.procurement.Approve(ctx, manager, id, false, "over budget")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcurementRejected, view.Application.Status)

	_, err = f.procurement.Approve(ctx, manager, id, true, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	pending, err := f.procurement.Pending(ctx, manager)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcurement_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.procurement.Submit(ctx, operator, scenarioD("35"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	view, err := f.procurement.Submit(ctx, purchaser, scenarioD("35"))
	require.NoError(t, err)
	id := view.Application.ID

	_, err = f.procurement.Approve(ctx, purchaser, id, true, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.procurement.Approve(ctx, otherManager, id, true, "")
	assert.ErrorIs(t, err, domain.ErrNotAssignedApprover)

	_, err = f.procurement.Approve(ctx, manager, "missing", true, "")
	assert.ErrorIs(t, err, domain.ErrApplicationMissing)

	_, err = f.procurement.Pending(ctx, purchaser)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestProcurement_AdminOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.procurement.Submit(ctx, purchaser, scenarioD("35"))
	require.NoError(t, err)

	view, err = f.procurement.Approve(ctx, admin, view.Application.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, view.Flow.Approver)
	assert.Equal(t, []string{"CREATE", "OVERRIDE_APPROVER", "APPROVE"}, f.audit.actions())
}

func TestProcurement_Idempotency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := scenarioD("35")
	req.RequestID = "po-1"
	_, err := f.procurement.Submit(ctx, purchaser, req)
	require.NoError(t, err)

	_, err = f.procurement.Submit(ctx, purchaser, req)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	// Keys are scoped per applicant
	other := domain.User{ID: "buyer-2", Roles: []domain.Role{domain.RolePurchaser}}
	_, err = f.procurement.Submit(ctx, other, req)
	require.NoError(t, err)
}

func TestProcurement_ListScopesByApplicant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := domain.User{ID: "buyer-2", Roles: []domain.Role{domain.RolePurchaser}}
	_, err := f.procurement.Submit(ctx, purchaser, scenarioD("35"))
	require.NoError(t, err)
	mine, err := f.procurement.Submit(ctx, other, scenarioD("35"))
	require.NoError(t, err)

	apps, err := f.procurement.List(ctx, other)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, mine.Application.ID, apps[0].ID)

	apps, err = f.procurement.List(ctx, manager)
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	view, err := f.procurement.Get(ctx, other, mine.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.Application.FlowID, view.Flow.ID)

	_, err = f.procurement.Get(ctx, operator, mine.Application.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestProcurement_DraftIsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.procurement.Submit(ctx, purchaser, scenarioD("35.00"))
	require.NoError(t, err)
	id := view.Application.ID

	// applications imported as drafts await the same decision
	err = f.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		app, err := tx.GetProcurementApplication(ctx, id)
		require.NoError(t, err)
		app.Status = domain.ProcurementDraft
		return tx.UpdateProcurementApplication(ctx, app)
	})
	require.NoError(t, err)

	pending, err := f.procurement.Pending(ctx, manager)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ProcurementDraft, pending[0].Status)

	view, err = f.procurement.Approve(ctx, manager, id, true, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcurementApproved, view.Application.Status)

	pending, err = f.procurement.Pending(ctx, manager)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
