package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

const moduleProcurement = "procurement"

type SubmitProcurementRequest struct {
	// RequestID makes the submission idempotent when set.
	RequestID     string
	Title         string
	DeclaredTotal decimal.Decimal
	Items         []ProcurementItemRequest
}

// ProcurementService runs purchase requests through approval. It never
// touches the stock ledger.
type ProcurementService struct {
	store     port.Store
	workflow  *WorkflowService
	validator *ProcurementValidator
	approvers port.ApproverDirectory
	opts      options
}

func NewProcurementService(
	store port.Store,
	workflow *WorkflowService,
	validator *ProcurementValidator,
	approvers port.ApproverDirectory,
	opts ...Option,
) *ProcurementService {
	return &ProcurementService{
		store:     store,
		workflow:  workflow,
		validator: validator,
		approvers: approvers,
		opts:      newOptions(opts),
	}
}

func (s *ProcurementService) Submit(ctx context.Context, actor domain.User, req SubmitProcurementRequest) (view *domain.ProcurementApplicationView, err error) {
	ctx, finish := s.opts.begin(ctx, "procurement.submit", actor, attribute.Int("procurement.items", len(req.Items)))
	defer func() { finish(err) }()

	if err := requireRole(actor, domain.RolePurchaser, domain.RoleAdmin); err != nil {
		return nil, err
	}

	release, err := s.opts.acquire(ctx, actor.ID, req.RequestID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	validation, err := s.validator.ValidateCreate(ctx, req.Title, req.DeclaredTotal, req.Items)
	if err != nil {
		return nil, err
	}

	approver, err := s.approvers.Manager(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve approver: %w", err)
	}

	var (
		app  *domain.ProcurementApplication
		flow *domain.ApprovalFlow
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		var err error
		flow, err = s.workflow.Start(ctx, tx, actor.ID, domain.BusinessProcurement, approver)
		if err != nil {
			return err
		}

		now := s.opts.now()
		app = &domain.ProcurementApplication{
			ID:          s.opts.newID(),
			Applicant:   actor.ID,
			Title:       req.Title,
			TotalAmount: validation.Total,
			Status:      domain.ProcurementSubmitted,
			Items:       make([]domain.ProcurementItem, 0, len(req.Items)),
			FlowID:      flow.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for i, item := range req.Items {
			app.Items = append(app.Items, domain.ProcurementItem{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				ExpectedPrice: validation.Prices[i],
			})
		}

		if err := tx.InsertProcurementApplication(ctx, app); err != nil {
			return fmt.Errorf("insert procurement application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("procurement application submitted",
		zap.String("application_id", app.ID),
		zap.String("total", app.TotalAmount.StringFixed(2)),
		zap.String("actor", actor.ID),
	)
	s.opts.emit(ctx, domain.AuditRecord{
		Module:   moduleProcurement,
		Action:   "CREATE",
		Details:  fmt.Sprintf("created procurement application #%s (%s)", app.ID, app.TotalAmount.StringFixed(2)),
		Operator: actor.ID,
	})
	return &domain.ProcurementApplicationView{Application: *app, Flow: *flow}, nil
}

// Approve is terminal either way.
func (s *ProcurementService) Approve(ctx context.Context, actor domain.User, id string, approved bool, comment string) (view *domain.ProcurementApplicationView, err error) {
	ctx, finish := s.opts.begin(ctx, "procurement.approve", actor,
		attribute.String("application.id", id), attribute.Bool("approved", approved))
	defer func() { finish(err) }()

	if err := requireRole(actor, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		app      *domain.ProcurementApplication
		decision *Decision
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		var err error
		app, err = tx.GetProcurementApplication(ctx, id)
		if err != nil {
			return fmt.Errorf("get procurement application: %w", err)
		}
		if app == nil {
			return fmt.Errorf("%w: %s", domain.ErrApplicationMissing, id)
		}

		flow, err := tx.GetFlow(ctx, app.FlowID)
		if err != nil {
			return fmt.Errorf("get flow: %w", err)
		}
		if flow == nil {
			return fmt.Errorf("%w: %s", domain.ErrFlowNotFound, app.FlowID)
		}
		if flow.Approver != actor.ID && !actor.CanOverrideApprover() {
			return fmt.Errorf("%w: application %s", domain.ErrNotAssignedApprover, id)
		}
		if app.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", domain.ErrAlreadyProcessed, id, app.Status)
		}

		decision, err = s.workflow.Decide(ctx, tx, app.FlowID, actor, approved, comment)
		if err != nil {
			return err
		}

		if approved {
			app.Status = domain.ProcurementApproved
		} else {
			app.Status = domain.ProcurementRejected
		}
		app.UpdatedAt = s.opts.now()
		if err := tx.UpdateProcurementApplication(ctx, app); err != nil {
			return fmt.Errorf("update procurement application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "APPROVE"
	if !approved {
		action = "REJECT"
	}
	s.opts.logger.Info("procurement application decided",
		zap.String("application_id", app.ID),
		zap.String("status", string(app.Status)),
		zap.String("actor", actor.ID),
	)
	recordOverride(ctx, &s.opts, moduleProcurement, actor, app.ID, decision)
	s.opts.emit(ctx, domain.AuditRecord{
		Module:   moduleProcurement,
		Action:   action,
		Details:  fmt.Sprintf("%s procurement application #%s: %s", statusVerb(approved), app.ID, comment),
		Operator: actor.ID,
	})
	return &domain.ProcurementApplicationView{Application: *app, Flow: *decision.Flow}, nil
}

func (s *ProcurementService) Get(ctx context.Context, actor domain.User, id string) (*domain.ProcurementApplicationView, error) {
	if err := requireRole(actor, domain.RolePurchaser, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}

	app, err := s.store.FindProcurementApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find procurement application: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrApplicationMissing, id)
	}
	flow, err := s.store.FindFlow(ctx, app.FlowID)
	if err != nil {
		return nil, fmt.Errorf("find flow: %w", err)
	}
	if flow == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, app.FlowID)
	}
	return &domain.ProcurementApplicationView{Application: *app, Flow: *flow}, nil
}

// List shows managers and administrators every application and everyone
// else only their own.
func (s *ProcurementService) List(ctx context.Context, actor domain.User) ([]domain.ProcurementApplication, error) {
	if err := requireRole(actor, domain.RolePurchaser, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}
	applicant := actor.ID
	if actor.HasAnyRole(domain.RoleManager, domain.RoleAdmin) {
		applicant = ""
	}
	return s.store.ListProcurementApplications(ctx, applicant, nil)
}

func (s *ProcurementService) Pending(ctx context.Context, actor domain.User) ([]domain.ProcurementApplication, error) {
	if err := requireRole(actor, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListProcurementApplications(ctx, "", domain.PendingProcurementStatuses)
}
