package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/core/service"
)

type InventoryItemRequest struct {
	ProductID  int64  `json:"product_id"`
	Quantity   int    `json:"quantity"`
	LocationID *int64 `json:"location_id,omitempty"`
}

type SubmitInventoryRequest struct {
	RequestID string                 `json:"request_id,omitempty"`
	Type      string                 `json:"type"`
	Reason    string                 `json:"reason"`
	Items     []InventoryItemRequest `json:"items"`
}

type DecisionRequest struct {
	ApplicationID string `json:"application_id,omitempty"`
	Approved      bool   `json:"approved"`
	Comment       string `json:"comment"`
}

type ExecutionItemRequest struct {
	ProductID  int64  `json:"product_id"`
	ActualQty  int    `json:"actual_qty"`
	LocationID *int64 `json:"location_id,omitempty"`
}

type ExecuteRequest struct {
	ApplicationID string                 `json:"application_id,omitempty"`
	Items         []ExecutionItemRequest `json:"items"`
}

type ProcurementItemRequest struct {
	ProductID     int64               `json:"product_id"`
	Quantity      int                 `json:"quantity"`
	ExpectedPrice decimal.NullDecimal `json:"expected_price"`
}

type SubmitProcurementRequest struct {
	RequestID   string                   `json:"request_id,omitempty"`
	Title       string                   `json:"title"`
	TotalAmount decimal.Decimal          `json:"total_amount"`
	Items       []ProcurementItemRequest `json:"items"`
}

type StockRequest struct{}

type NodeResponse struct {
	Approver  string     `json:"approver"`
	Result    string     `json:"result"`
	Comment   string     `json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

type FlowResponse struct {
	ID           string         `json:"id"`
	Applicant    string         `json:"applicant"`
	Approver     string         `json:"approver"`
	BusinessType string         `json:"business_type"`
	Status       string         `json:"status"`
	Nodes        []NodeResponse `json:"nodes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type AuditRecordResponse struct {
	Module   string    `json:"module"`
	Action   string    `json:"action"`
	Details  string    `json:"details"`
	Operator string    `json:"operator"`
	At       time.Time `json:"at"`
}

type InventoryItemResponse struct {
	ProductID    int64  `json:"product_id"`
	RequestedQty int    `json:"requested_qty"`
	ActualQty    *int   `json:"actual_qty,omitempty"`
	LocationID   *int64 `json:"location_id,omitempty"`
}

type InventoryApplicationResponse struct {
	ID        string                  `json:"id"`
	Type      string                  `json:"type"`
	Applicant string                  `json:"applicant"`
	Reason    string                  `json:"reason"`
	Status    string                  `json:"status"`
	Items     []InventoryItemResponse `json:"items"`
	FlowID    string                  `json:"flow_id"`
	Flow      *FlowResponse           `json:"flow,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type ProcurementItemResponse struct {
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	ExpectedPrice decimal.Decimal `json:"expected_price"`
}

type ProcurementApplicationResponse struct {
	ID          string                    `json:"id"`
	Applicant   string                    `json:"applicant"`
	Title       string                    `json:"title"`
	TotalAmount decimal.Decimal           `json:"total_amount"`
	Status      string                    `json:"status"`
	Items       []ProcurementItemResponse `json:"items"`
	FlowID      string                    `json:"flow_id"`
	Flow        *FlowResponse             `json:"flow,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

type StockResponse struct {
	ProductID    int64  `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Unit         string `json:"unit,omitempty"`
	CurrentStock int    `json:"current_stock"`
	SafetyStock  int    `json:"safety_stock"`
	LockedStock  int    `json:"locked_stock"`
	Available    int    `json:"available"`
	BelowSafety  bool   `json:"below_safety"`
	LocationID   *int64 `json:"location_id,omitempty"`
	LocationCode string `json:"location_code,omitempty"`
}

type StockSnapshotResponse struct {
	Items []StockResponse `json:"items"`
}

func (r SubmitInventoryRequest) toService() service.SubmitInventoryRequest {
	items := make([]service.InventoryItemRequest, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, service.InventoryItemRequest{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			LocationID: item.LocationID,
		})
	}
	return service.SubmitInventoryRequest{
		RequestID: r.RequestID,
		Type:      domain.InventoryType(r.Type),
		Reason:    r.Reason,
		Items:     items,
	}
}

func (r ExecuteRequest) toService() []service.ExecutionItem {
	items := make([]service.ExecutionItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, service.ExecutionItem{
			ProductID:  item.ProductID,
			ActualQty:  item.ActualQty,
			LocationID: item.LocationID,
		})
	}
	return items
}

func (r SubmitProcurementRequest) toService() service.SubmitProcurementRequest {
	items := make([]service.ProcurementItemRequest, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, service.ProcurementItemRequest{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			ExpectedPrice: item.ExpectedPrice,
		})
	}
	return service.SubmitProcurementRequest{
		RequestID:     r.RequestID,
		Title:         r.Title,
		DeclaredTotal: r.TotalAmount,
		Items:         items,
	}
}

func newFlowResponse(f domain.ApprovalFlow) *FlowResponse {
	nodes := make([]NodeResponse, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		nodes = append(nodes, NodeResponse{
			Approver:  n.Approver,
			Result:    string(n.Result),
			Comment:   n.Comment,
			DecidedAt: n.DecidedAt,
		})
	}
	return &FlowResponse{
		ID:           f.ID,
		Applicant:    f.Applicant,
		Approver:     f.Approver,
		BusinessType: string(f.BusinessType),
		Status:       string(f.Status),
		Nodes:        nodes,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func newInventoryResponse(app domain.InventoryApplication, flow *domain.ApprovalFlow) *InventoryApplicationResponse {
	items := make([]InventoryItemResponse, 0, len(app.Items))
	for _, item := range app.Items {
		items = append(items, InventoryItemResponse{
			ProductID:    item.ProductID,
			RequestedQty: item.RequestedQty,
			ActualQty:    item.ActualQty,
			LocationID:   item.LocationID,
		})
	}
	resp := &InventoryApplicationResponse{
		ID:        app.ID,
		Type:      string(app.Type),
		Applicant: app.Applicant,
		Reason:    app.Reason,
		Status:    string(app.Status),
		Items:     items,
		FlowID:    app.FlowID,
		CreatedAt: app.CreatedAt,
		UpdatedAt: app.UpdatedAt,
	}
	if flow != nil {
		resp.Flow = newFlowResponse(*flow)
	}
	return resp
}

func newProcurementResponse(app domain.ProcurementApplication, flow *domain.ApprovalFlow) *ProcurementApplicationResponse {
	items := make([]ProcurementItemResponse, 0, len(app.Items))
	for _, item := range app.Items {
		items = append(items, ProcurementItemResponse{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			ExpectedPrice: item.ExpectedPrice,
		})
	}
	resp := &ProcurementApplicationResponse{
		ID:          app.ID,
		Applicant:   app.Applicant,
		Title:       app.Title,
		TotalAmount: app.TotalAmount,
		Status:      string(app.Status),
		Items:       items,
		FlowID:      app.FlowID,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
	if flow != nil {
		resp.Flow = newFlowResponse(*flow)
	}
	return resp
}

func newStockSnapshot(views []domain.StockView) *StockSnapshotResponse {
	items := make([]StockResponse, 0, len(views))
	for _, v := range views {
		items = append(items, StockResponse{
			ProductID:    v.ProductID,
			SKU:          v.SKU,
			Name:         v.Name,
			Unit:         v.Unit,
			CurrentStock: v.CurrentStock,
			SafetyStock:  v.SafetyStock,
			LockedStock:  v.LockedStock,
			Available:    v.CurrentStock - v.LockedStock,
			BelowSafety:  v.BelowSafety,
			LocationID:   v.LocationID,
			LocationCode: v.LocationCode,
		})
	}
	return &StockSnapshotResponse{Items: items}
}

func newAuditRecordResponse(r domain.AuditRecord) *AuditRecordResponse {
	return &AuditRecordResponse{
		Module:   r.Module,
		Action:   r.Action,
		Details:  r.Details,
		Operator: r.Operator,
		At:       r.At,
	}
}
