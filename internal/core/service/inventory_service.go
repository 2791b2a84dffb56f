package service

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

const moduleInventory = "inventory"

type SubmitInventoryRequest struct {
	// RequestID makes the submission idempotent when set.
	RequestID string
	Type      domain.InventoryType
	Reason    string
	Items     []InventoryItemRequest
}

type InventoryService struct {
	store     port.Store
	ledger    *StockLedger
	workflow  *WorkflowService
	validator *InventoryValidator
	approvers port.ApproverDirectory
	opts      options
}

func NewInventoryService(
	store port.Store,
	ledger *StockLedger,
	workflow *WorkflowService,
	validator *InventoryValidator,
	approvers port.ApproverDirectory,
	opts ...Option,
) *InventoryService {
	return &InventoryService{
		store:     store,
		ledger:    ledger,
		workflow:  workflow,
		validator: validator,
		approvers: approvers,
		opts:      newOptions(opts),
	}
}

// Submit creates an application of kind through the endpoint for that kind.
// Outbound submissions lock their quantities until the application is
// rejected or executed.
func (s *InventoryService) Submit(ctx context.Context, actor domain.User, kind domain.InventoryType, req SubmitInventoryRequest) (view *domain.InventoryApplicationView, err error) {
	ctx, finish := s.opts.begin(ctx, "inventory.submit", actor, attribute.String("inventory.type", string(kind)))
	defer func() { finish(err) }()

	if err := requireRole(actor, domain.RoleOperator, domain.RolePurchaser, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !kind.Valid() || req.Type != kind {
		return nil, fmt.Errorf("%w: request %q on %q endpoint", domain.ErrTypeMismatch, req.Type, kind)
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

	approver, err := s.approvers.Manager(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve approver: %w", err)
	}

	var (
		app  *domain.InventoryApplication
		flow *domain.ApprovalFlow
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		if err := s.validator.ValidateCreate(ctx, tx, req.Type, req.Items); err != nil {
			return err
		}

		now := s.opts.now()
		app = &domain.InventoryApplication{
			ID:        s.opts.newID(),
			Type:      req.Type,
			Applicant: actor.ID,
			Reason:    req.Reason,
			Status:    domain.InventoryCreated,
			Items:     make([]domain.InventoryItem, 0, len(req.Items)),
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, i := range lockOrder(req.Items, requestItemProduct) {
			if _, err := s.ledger.EnsureExists(ctx, tx, req.Items[i].ProductID); err != nil {
				return err
			}
		}
		for _, item := range req.Items {
			app.Items = append(app.Items, domain.InventoryItem{
				ProductID:    item.ProductID,
				RequestedQty: item.Quantity,
				LocationID:   item.LocationID,
			})
		}

		var err error
		flow, err = s.workflow.Start(ctx, tx, actor.ID, req.Type.BusinessType(), approver)
		if err != nil {
			return err
		}
		app.FlowID = flow.ID

		if req.Type == domain.InventoryOut {
			for _, i := range lockOrder(app.Items, inventoryItemProduct) {
				item := app.Items[i]
				if _, err := s.ledger.Lock(ctx, tx, item.ProductID, item.RequestedQty); err != nil {
					return err
				}
			}
		}

		app.Status = domain.InventoryPendingApproval
		if err := tx.InsertInventoryApplication(ctx, app); err != nil {
			return fmt.Errorf("insert inventory application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("inventory application submitted",
		zap.String("application_id", app.ID),
		zap.String("type", string(app.Type)),
		zap.String("actor", actor.ID),
		zap.Int("items", len(app.Items)),
	)
	s.opts.emit(ctx, domain.AuditRecord{
		Module:   moduleInventory,
		Action:   "SUBMIT_" + direction(app.Type),
		Details:  fmt.Sprintf("submitted %s application #%s", lowerDirection(app.Type), app.ID),
		Operator: actor.ID,
	})
	return &domain.InventoryApplicationView{Application: *app, Flow: *flow}, nil
}

// Approve records the approver's decision. Rejection releases outbound
// locks; approval completes inbound applications immediately and leaves
// outbound ones APPROVED until Execute.
func (s *InventoryService) Approve(ctx context.Context, actor domain.User, id string, approved bool, comment string) (view *domain.InventoryApplicationView, err error) {
	ctx, finish := s.opts.begin(ctx, "inventory.approve", actor,
		attribute.String("application.id", id), attribute.Bool("approved", approved))
	defer func() { finish(err) }()

	if err := requireRole(actor, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		app      *domain.InventoryApplication
		decision *Decision
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		var err error
		app, err = s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if app.Status != domain.InventoryPendingApproval {
			return fmt.Errorf("%w: %s is %s", domain.ErrAlreadyProcessed, id, app.Status)
		}

		decision, err = s.workflow.Decide(ctx, tx, app.FlowID, actor, approved, comment)
		if err != nil {
			return err
		}

		switch {
		case !approved:
			app.Status = domain.InventoryRejected
			if app.Type == domain.InventoryOut {
				for _, i := range lockOrder(app.Items, inventoryItemProduct) {
					item := app.Items[i]
					if _, err := s.ledger.Release(ctx, tx, item.ProductID, item.RequestedQty); err != nil {
						return err
					}
				}
			}
		case app.Type == domain.InventoryIn:
			if err := s.validator.ValidateInboundCompletion(ctx, app); err != nil {
				return err
			}
			for _, i := range lockOrder(app.Items, inventoryItemProduct) {
				item := &app.Items[i]
				if _, err := s.ledger.AdjustInbound(ctx, tx, item.ProductID, item.RequestedQty, item.LocationID); err != nil {
					return err
				}
				qty := item.RequestedQty
				item.ActualQty = &qty
			}
			app.Status = domain.InventoryCompleted
		default:
			app.Status = domain.InventoryApproved
		}

		app.UpdatedAt = s.opts.now()
		if err := tx.UpdateInventoryApplication(ctx, app); err != nil {
			return fmt.Errorf("update inventory application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "APPROVE_"
	if !approved {
		action = "REJECT_"
	}
	s.opts.logger.Info("inventory application decided",
		zap.String("application_id", app.ID),
		zap.String("status", string(app.Status)),
		zap.String("actor", actor.ID),
	)
	s.recordOverride(ctx, actor, app.ID, decision)
	s.opts.emit(ctx, domain.AuditRecord{
		Module:   moduleInventory,
		Action:   action + direction(app.Type),
		Details:  fmt.Sprintf("%s %s application #%s: %s", statusVerb(approved), lowerDirection(app.Type), app.ID, comment),
		Operator: actor.ID,
	})
	return &domain.InventoryApplicationView{Application: *app, Flow: *decision.Flow}, nil
}

// Execute turns the reservations of an approved outbound application into
// ledger changes. Either every item is applied or none is.
func (s *InventoryService) Execute(ctx context.Context, actor domain.User, id string, items []ExecutionItem) (view *domain.InventoryApplicationView, err error) {
	ctx, finish := s.opts.begin(ctx, "inventory.execute", actor, attribute.String("application.id", id))
	defer func() { finish(err) }()

	if err := requireRole(actor, domain.RoleOperator, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		app  *domain.InventoryApplication
		flow *domain.ApprovalFlow
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		var err error
		app, err = s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if app.Type != domain.InventoryOut {
			return fmt.Errorf("%w: only outbound applications are executed", domain.ErrTypeMismatch)
		}
		if app.Status != domain.InventoryApproved {
			return fmt.Errorf("%w: %s is %s", domain.ErrNotApproved, id, app.Status)
		}
		if err := s.validator.ValidateExecution(ctx, tx, app, items); err != nil {
			return err
		}

		app.Status = domain.InventoryExecuting
		app.UpdatedAt = s.opts.now()
		if err := tx.UpdateInventoryApplication(ctx, app); err != nil {
			return fmt.Errorf("update inventory application: %w", err)
		}

		index := make(map[int64]int, len(app.Items))
		for i, item := range app.Items {
			index[item.ProductID] = i
		}
		for _, i := range lockOrder(items, executionItemProduct) {
			exec := items[i]
			item := &app.Items[index[exec.ProductID]]
			if _, err := s.ledger.AdjustOutbound(ctx, tx, exec.ProductID, item.RequestedQty, exec.ActualQty); err != nil {
				return err
			}
			qty := exec.ActualQty
			item.ActualQty = &qty
			if loc := targetLocation(exec, *item); loc != nil {
				l := *loc
				item.LocationID = &l
			}
		}

		app.Status = domain.InventoryCompleted
		app.UpdatedAt = s.opts.now()
		if err := tx.UpdateInventoryApplication(ctx, app); err != nil {
			return fmt.Errorf("update inventory application: %w", err)
		}

		flow, err = tx.GetFlow(ctx, app.FlowID)
		if err != nil {
			return fmt.Errorf("get flow: %w", err)
		}
		if flow == nil {
			return fmt.Errorf("%w: %s", domain.ErrFlowNotFound, app.FlowID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("inventory application executed",
		zap.String("application_id", app.ID),
		zap.String("actor", actor.ID),
	)
	s.opts.emit(ctx, domain.AuditRecord{
		Module:   moduleInventory,
		Action:   "EXECUTE_" + direction(app.Type),
		Details:  fmt.Sprintf("executed %s application #%s", lowerDirection(app.Type), app.ID),
		Operator: actor.ID,
	})
	return &domain.InventoryApplicationView{Application: *app, Flow: *flow}, nil
}

func (s *InventoryService) Get(ctx context.Context, actor domain.User, id string) (*domain.InventoryApplicationView, error) {
	if err := requireRole(actor, domain.RoleOperator, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}

	app, err := s.store.FindInventoryApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find inventory application: %w", err)
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
	return &domain.InventoryApplicationView{Application: *app, Flow: *flow}, nil
}

// List returns applications of typ in any of statuses; no statuses means all.
func (s *InventoryService) List(ctx context.Context, actor domain.User, typ domain.InventoryType, statuses []domain.InventoryApplicationStatus) ([]domain.InventoryApplication, error) {
	if err := requireRole(actor, domain.RoleOperator, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListInventoryApplications(ctx, typ, statuses)
}

// StockSnapshot lists every catalog product plus any ledger row the catalog
// does not know about.
func (s *InventoryService) StockSnapshot(ctx context.Context) ([]domain.StockView, error) {
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	byProduct := make(map[int64]domain.Stock, len(stocks))
	for _, stock := range stocks {
		byProduct[stock.ProductID] = stock
	}

	var products []domain.Product
	if s.opts.catalog != nil {
		products, err = s.opts.catalog.ListProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
	}

	views := make([]domain.StockView, 0, len(products)+len(stocks))
	known := make(map[int64]struct{}, len(products))
	for _, product := range products {
		known[product.ID] = struct{}{}
		stock := byProduct[product.ID]
		views = append(views, stockView(product, stock))
	}
	for _, stock := range stocks {
		if _, ok := known[stock.ProductID]; ok {
			continue
		}
		views = append(views, stockView(domain.Product{
			ID:   stock.ProductID,
			SKU:  fmt.Sprintf("SKU-%d", stock.ProductID),
			Name: fmt.Sprintf("Product %d", stock.ProductID),
		}, stock))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ProductID < views[j].ProductID })

	if err := s.attachLocationCodes(ctx, views); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *InventoryService) attachLocationCodes(ctx context.Context, views []domain.StockView) error {
	ids := make([]*int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.LocationID)
	}
	locations, err := s.validator.loadLocations(ctx, ids)
	if err != nil {
		return err
	}
	for i := range views {
		if views[i].LocationID == nil {
			continue
		}
		views[i].LocationCode = locations[*views[i].LocationID].Code
	}
	return nil
}

func (s *InventoryService) loadForUpdate(ctx context.Context, tx port.Tx, id string) (*domain.InventoryApplication, error) {
	app, err := tx.GetInventoryApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get inventory application: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrApplicationMissing, id)
	}
	return app, nil
}

func (s *InventoryService) recordOverride(ctx context.Context, actor domain.User, applicationID string, decision *Decision) {
	recordOverride(ctx, &s.opts, moduleInventory, actor, applicationID, decision)
}

func recordOverride(ctx context.Context, opts *options, module string, actor domain.User, applicationID string, decision *Decision) {
	if decision == nil || decision.OverriddenApprover == "" {
		return
	}
	opts.logger.Warn("approver overridden by administrator",
		zap.String("application_id", applicationID),
		zap.String("flow_id", decision.Flow.ID),
		zap.String("original_approver", decision.OverriddenApprover),
		zap.String("acting_approver", actor.ID),
	)
	opts.emit(ctx, domain.AuditRecord{
		Module: module,
		Action: "OVERRIDE_APPROVER",
		Details: fmt.Sprintf("flow %s of application #%s reassigned from %s to %s",
			decision.Flow.ID, applicationID, decision.OverriddenApprover, actor.ID),
		Operator: actor.ID,
	})
}

func stockView(product domain.Product, stock domain.Stock) domain.StockView {
	return domain.StockView{
		ProductID:    product.ID,
		SKU:          product.SKU,
		Name:         product.Name,
		Unit:         product.Unit,
		CurrentStock: stock.CurrentStock,
		SafetyStock:  stock.SafetyStock,
		LockedStock:  stock.LockedStock,
		BelowSafety:  stock.BelowSafety(),
		LocationID:   stock.LocationID,
	}
}

func direction(t domain.InventoryType) string {
	if t == domain.InventoryIn {
		return "INBOUND"
	}
	return "OUTBOUND"
}

func lowerDirection(t domain.InventoryType) string {
	if t == domain.InventoryIn {
		return "inbound"
	}
	return "outbound"
}

func statusVerb(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}
