package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

// Decision is the outcome of recording an approver's verdict on a flow.
type Decision struct {
	Flow *domain.ApprovalFlow
	// OverriddenApprover is the approver the flow was addressed to when an
	// administrator decided in their place; empty otherwise.
	OverriddenApprover string
}

type WorkflowService struct {
	store port.Store
	opts  options
}

func NewWorkflowService(store port.Store, opts ...Option) *WorkflowService {
	return &WorkflowService{store: store, opts: newOptions(opts)}
}

// Start creates a flow in APPROVING with one pending node for approver.
func (w *WorkflowService) Start(ctx context.Context, tx port.Tx, applicant string, businessType domain.BusinessType, approver string) (*domain.ApprovalFlow, error) {
	now := w.opts.now()
	flow := &domain.ApprovalFlow{
		ID:           w.opts.newID(),
		Applicant:    applicant,
		Approver:     approver,
		BusinessType: businessType,
		Status:       domain.ApprovalApproving,
		Nodes: []domain.ApprovalNode{
			{Approver: approver, Result: domain.ResultPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := tx.InsertFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("insert flow: %w", err)
	}
	return flow, nil
}

// Decide records actor's verdict. Re-decision is not blocked here; the
// owning application's status is the guard.
func (w *WorkflowService) Decide(ctx context.Context, tx port.Tx, flowID string, actor domain.User, approved bool, comment string) (*Decision, error) {
	flow, err := tx.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}
	if flow == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
	}

	assigned := flow.Approver == actor.ID
	if !assigned && !actor.CanOverrideApprover() {
		return nil, fmt.Errorf("%w: flow %s", domain.ErrNotAssignedApprover, flowID)
	}

	idx := -1
	for i, node := range flow.Nodes {
		if node.Approver == flow.Approver {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: flow %s has no node for %s", domain.ErrInvariant, flowID, flow.Approver)
	}

	decision := &Decision{Flow: flow}
	node := &flow.Nodes[idx]
	if !assigned {
		decision.OverriddenApprover = flow.Approver
		node.Approver = actor.ID
		flow.Approver = actor.ID
	}

	now := w.opts.now()
	node.Comment = comment
	node.DecidedAt = &now
	if approved {
		node.Result = domain.ResultApproved
		flow.Status = domain.ApprovalApproved
	} else {
		node.Result = domain.ResultRejected
		flow.Status = domain.ApprovalRejected
	}
	flow.UpdatedAt = now

	if err := tx.UpdateFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("update flow: %w", err)
	}
	return decision, nil
}

// PendingFlows lists flows still waiting on actor.
func (w *WorkflowService) PendingFlows(ctx context.Context, actor domain.User) (flows []domain.ApprovalFlow, err error) {
	ctx, finish := w.opts.begin(ctx, "workflow.pending", actor, attribute.String("approver.id", actor.ID))
	defer func() { finish(err) }()

	if err := requireRole(actor, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return w.store.ListFlowsByApprover(ctx, actor.ID, []domain.ApprovalStatus{domain.ApprovalApproving})
}
