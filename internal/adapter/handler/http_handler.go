package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/core/service"
	"github.com/rl1809/wms-approval/internal/port"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type HTTPHandler struct {
	inventory   *service.InventoryService
	procurement *service.ProcurementService
	workflow    *service.WorkflowService
	audit       port.AuditReader
	logger      *zap.Logger
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewHTTPHandler(
	inventory *service.InventoryService,
	procurement *service.ProcurementService,
	workflow *service.WorkflowService,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		inventory:   inventory,
		procurement: procurement,
		workflow:    workflow,
		logger:      logger,
	}
}

// WithAuditReader enables GET /api/audit/recent.
func (h *HTTPHandler) WithAuditReader(reader port.AuditReader) *HTTPHandler {
	h.audit = reader
	return h
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/inventory/in", h.SubmitInbound)
	mux.HandleFunc("POST /api/inventory/out", h.SubmitOutbound)
	mux.HandleFunc("POST /api/inventory/{id}/approve", h.ApproveInventory)
	mux.HandleFunc("POST /api/inventory/{id}/execute", h.ExecuteInventory)
	mux.HandleFunc("GET /api/inventory/stock", h.StockSnapshot)
	mux.HandleFunc("GET /api/inventory/{id}", h.GetInventory)
	mux.HandleFunc("GET /api/inventory", h.ListInventory)

	mux.HandleFunc("POST /api/procurement", h.SubmitProcurement)
	mux.HandleFunc("POST /api/procurement/{id}/approve", h.ApproveProcurement)
	mux.HandleFunc("GET /api/procurement/pending", h.PendingProcurement)
	mux.HandleFunc("GET /api/procurement/{id}", h.GetProcurement)
	mux.HandleFunc("GET /api/procurement", h.ListProcurement)

	mux.HandleFunc("GET /api/approvals/pending", h.PendingFlows)

	if h.audit != nil {
		mux.HandleFunc("GET /api/audit/recent", h.RecentAudit)
	}
}

func (h *HTTPHandler) SubmitInbound(w http.ResponseWriter, r *http.Request) {
	h.submitInventory(w, r, domain.InventoryIn)
}

func (h *HTTPHandler) SubmitOutbound(w http.ResponseWriter, r *http.Request) {
	h.submitInventory(w, r, domain.InventoryOut)
}

func (h *HTTPHandler) submitInventory(w http.ResponseWriter, r *http.Request, kind domain.InventoryType) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SubmitInventoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = string(kind)
	}

	view, err := h.inventory.Submit(r.Context(), actor, kind, req.toService())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "application submitted",
		Data:    newInventoryResponse(view.Application, &view.Flow),
	})
}

func (h *HTTPHandler) ApproveInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.inventory.Approve(r.Context(), actor, r.PathValue("id"), req.Approved, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "application " + strings.ToLower(string(view.Application.Status)),
		Data:    newInventoryResponse(view.Application, &view.Flow),
	})
}

func (h *HTTPHandler) ExecuteInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req ExecuteRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.inventory.Execute(r.Context(), actor, r.PathValue("id"), req.toService())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "application executed",
		Data:    newInventoryResponse(view.Application, &view.Flow),
	})
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	view, err := h.inventory.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data:    newInventoryResponse(view.Application, &view.Flow),
	})
}

// ListInventory accepts ?type=IN|OUT and a repeatable or comma separated ?status=.
func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	typ := domain.InventoryType(strings.ToUpper(query.Get("type")))
	if typ != "" && !typ.Valid() {
		h.writeError(w, fmt.Errorf("%w: unknown type %q", domain.ErrValidation, typ))
		return
	}
	var statuses []domain.InventoryApplicationStatus
	for _, raw := range query["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.InventoryApplicationStatus(strings.ToUpper(s)))
			}
		}
	}

	apps, err := h.inventory.List(r.Context(), actor, typ, statuses)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]*InventoryApplicationResponse, 0, len(apps))
	for _, app := range apps {
		data = append(data, newInventoryResponse(app, nil))
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: data})
}

func (h *HTTPHandler) StockSnapshot(w http.ResponseWriter, r *http.Request) {
	views, err := h.inventory.StockSnapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: newStockSnapshot(views).Items})
}

func (h *HTTPHandler) SubmitProcurement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SubmitProcurementRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.procurement.Submit(r.Context(), actor, req.toService())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "application submitted",
		Data:    newProcurementResponse(view.Application, &view.Flow),
	})
}

func (h *HTTPHandler) ApproveProcurement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.procurement.Approve(r.Context(), actor, r.PathValue("id"), req.Approved, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "application " + strings.ToLower(string(view.Application.Status)),
		Data:    newProcurementResponse(view.Application, &view.Flow),
	})
}

func (h *HTTPHandler) GetProcurement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	view, err := h.procurement.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data:    newProcurementResponse(view.Application, &view.Flow),
	})
}

func (h *HTTPHandler) ListProcurement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	apps, err := h.procurement.List(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: procurementList(apps)})
}

func (h *HTTPHandler) PendingProcurement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	apps, err := h.procurement.Pending(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: procurementList(apps)})
}

func (h *HTTPHandler) PendingFlows(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	flows, err := h.workflow.PendingFlows(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]*FlowResponse, 0, len(flows))
	for _, f := range flows {
		data = append(data, newFlowResponse(f))
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: data})
}

// RecentAudit lists the newest audit records, ?limit= of them.
func (h *HTTPHandler) RecentAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if !actor.HasAnyRole(domain.RoleManager, domain.RoleAdmin) {
		h.writeError(w, fmt.Errorf("%w: audit trail", domain.ErrForbidden))
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			h.writeError(w, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxAuditLimit))
			return
		}
		limit = n
	}

	records, err := h.audit.RecentAudit(r.Context(), int64(limit))
	if err != nil {
		h.writeError(w, fmt.Errorf("read audit trail: %w", err))
		return
	}
	data := make([]*AuditRecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, newAuditRecordResponse(record))
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: data})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := parseUser(r.Header.Get(headerUserID), r.Header.Get(headerUserRoles))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Message: "missing " + headerUserID + " header",
		})
	}
	return user, ok
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Message: message,
	})
}

func procurementList(apps []domain.ProcurementApplication) []*ProcurementApplicationResponse {
	data := make([]*ProcurementApplicationResponse, 0, len(apps))
	for _, app := range apps {
		data = append(data, newProcurementResponse(app, nil))
	}
	return data
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
