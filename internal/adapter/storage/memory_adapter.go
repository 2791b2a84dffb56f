package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

// MemoryStore keeps all four collections in process. Transactions run one
// at a time and stage their writes, which are applied only when fn returns
// nil.
type MemoryStore struct {
	mu          sync.Mutex
	stocks      map[int64]domain.Stock
	flows       map[string]*domain.ApprovalFlow
	inventory   map[string]*domain.InventoryApplication
	procurement map[string]*domain.ProcurementApplication
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks:      make(map[int64]domain.Stock),
		flows:       make(map[string]*domain.ApprovalFlow),
		inventory:   make(map[string]*domain.InventoryApplication),
		procurement: make(map[string]*domain.ProcurementApplication),
	}
}

// PutStock overwrites a ledger row. Meant for seeding.
func (m *MemoryStore) PutStock(stock domain.Stock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[stock.ProductID] = stock
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:       m,
		stocks:      make(map[int64]domain.Stock),
		flows:       make(map[string]*domain.ApprovalFlow),
		inventory:   make(map[string]*domain.InventoryApplication),
		procurement: make(map[string]*domain.ProcurementApplication),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *MemoryStore) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stocks := make([]domain.Stock, 0, len(m.stocks))
	for _, s := range m.stocks {
		stocks = append(stocks, s)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].ProductID < stocks[j].ProductID })
	return stocks, nil
}

func (m *MemoryStore) FindInventoryApplication(ctx context.Context, id string) (*domain.InventoryApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[id].Clone(), nil
}

func (m *MemoryStore) ListInventoryApplications(ctx context.Context, typ domain.InventoryType, statuses []domain.InventoryApplicationStatus) ([]domain.InventoryApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var apps []domain.InventoryApplication
	for _, app := range m.inventory {
		if typ != "" && app.Type != typ {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, app.Status) {
			continue
		}
		apps = append(apps, *app.Clone())
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.Before(apps[j].CreatedAt)
		}
		return apps[i].ID < apps[j].ID
	})
	return apps, nil
}

func (m *MemoryStore) FindProcurementApplication(ctx context.Context, id string) (*domain.ProcurementApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.procurement[id].Clone(), nil
}

func (m *MemoryStore) ListProcurementApplications(ctx context.Context, applicant string, statuses []domain.ProcurementStatus) ([]domain.ProcurementApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var apps []domain.ProcurementApplication
	for _, app := range m.procurement {
		if applicant != "" && app.Applicant != applicant {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, app.Status) {
			continue
		}
		apps = append(apps, *app.Clone())
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.Before(apps[j].CreatedAt)
		}
		return apps[i].ID < apps[j].ID
	})
	return apps, nil
}

func (m *MemoryStore) FindFlow(ctx context.Context, id string) (*domain.ApprovalFlow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flows[id].Clone(), nil
}

func (m *MemoryStore) ListFlowsByApprover(ctx context.Context, approver string, statuses []domain.ApprovalStatus) ([]domain.ApprovalFlow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flows []domain.ApprovalFlow
	for _, flow := range m.flows {
		if flow.Approver != approver {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, flow.Status) {
			continue
		}
		flows = append(flows, *flow.Clone())
	}
	sort.Slice(flows, func(i, j int) bool {
		if !flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].CreatedAt.Before(flows[j].CreatedAt)
		}
		return flows[i].ID < flows[j].ID
	})
	return flows, nil
}

type memoryTx struct {
	store       *MemoryStore
	stocks      map[int64]domain.Stock
	flows       map[string]*domain.ApprovalFlow
	inventory   map[string]*domain.InventoryApplication
	procurement map[string]*domain.ProcurementApplication
}

func (t *memoryTx) commit() {
	for id, s := range t.stocks {
		t.store.stocks[id] = s
	}
	for id, f := range t.flows {
		t.store.flows[id] = f
	}
	for id, a := range t.inventory {
		t.store.inventory[id] = a
	}
	for id, a := range t.procurement {
		t.store.procurement[id] = a
	}
}

func (t *memoryTx) stock(productID int64) (domain.Stock, bool) {
	if s, ok := t.stocks[productID]; ok {
		return s, true
	}
	s, ok := t.store.stocks[productID]
	return s, ok
}

func (t *memoryTx) GetStock(ctx context.Context, productID int64) (*domain.Stock, error) {
	s, ok := t.stock(productID)
	if !ok {
		return nil, nil
	}
	if s.LocationID != nil {
		loc := *s.LocationID
		s.LocationID = &loc
	}
	return &s, nil
}

func (t *memoryTx) InsertStockIfAbsent(ctx context.Context, stock domain.Stock) error {
	if _, ok := t.stock(stock.ProductID); ok {
		return nil
	}
	stock.Version = 0
	t.stocks[stock.ProductID] = stock
	return nil
}

func (t *memoryTx) UpdateStock(ctx context.Context, stock domain.Stock) error {
	current, ok := t.stock(stock.ProductID)
	if !ok {
		return fmt.Errorf("%w: product %d", domain.ErrStockNotFound, stock.ProductID)
	}
	if current.Version != stock.Version {
		return port.ErrOptimisticLock
	}
	stock.Version++
	t.stocks[stock.ProductID] = stock
	return nil
}

func (t *memoryTx) flow(id string) *domain.ApprovalFlow {
	if f, ok := t.flows[id]; ok {
		return f
	}
	return t.store.flows[id]
}

func (t *memoryTx) InsertFlow(ctx context.Context, flow *domain.ApprovalFlow) error {
	if t.flow(flow.ID) != nil {
		return fmt.Errorf("%w: flow %s already exists", domain.ErrConflict, flow.ID)
	}
	t.flows[flow.ID] = flow.Clone()
	return nil
}

func (t *memoryTx) GetFlow(ctx context.Context, id string) (*domain.ApprovalFlow, error) {
	return t.flow(id).Clone(), nil
}

func (t *memoryTx) UpdateFlow(ctx context.Context, flow *domain.ApprovalFlow) error {
	if t.flow(flow.ID) == nil {
		return fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flow.ID)
	}
	t.flows[flow.ID] = flow.Clone()
	return nil
}

func (t *memoryTx) inventoryApp(id string) *domain.InventoryApplication {
	if a, ok := t.inventory[id]; ok {
		return a
	}
	return t.store.inventory[id]
}

func (t *memoryTx) InsertInventoryApplication(ctx context.Context, app *domain.InventoryApplication) error {
	if t.inventoryApp(app.ID) != nil {
		return fmt.Errorf("%w: inventory application %s already exists", domain.ErrConflict, app.ID)
	}
	t.inventory[app.ID] = app.Clone()
	return nil
}

func (t *memoryTx) GetInventoryApplication(ctx context.Context, id string) (*domain.InventoryApplication, error) {
	return t.inventoryApp(id).Clone(), nil
}

func (t *memoryTx) UpdateInventoryApplication(ctx context.Context, app *domain.InventoryApplication) error {
	if t.inventoryApp(app.ID) == nil {
		return fmt.Errorf("%w: %s", domain.ErrApplicationMissing, app.ID)
	}
	t.inventory[app.ID] = app.Clone()
	return nil
}

func (t *memoryTx) procurementApp(id string) *domain.ProcurementApplication {
	if a, ok := t.procurement[id]; ok {
		return a
	}
	return t.store.procurement[id]
}

func (t *memoryTx) InsertProcurementApplication(ctx context.Context, app *domain.ProcurementApplication) error {
	if t.procurementApp(app.ID) != nil {
		return fmt.Errorf("%w: procurement application %s already exists", domain.ErrConflict, app.ID)
	}
	t.procurement[app.ID] = app.Clone()
	return nil
}

func (t *memoryTx) GetProcurementApplication(ctx context.Context, id string) (*domain.ProcurementApplication, error) {
	return t.procurementApp(id).Clone(), nil
}

func (t *memoryTx) UpdateProcurementApplication(ctx context.Context, app *domain.ProcurementApplication) error {
	if t.procurementApp(app.ID) == nil {
		return fmt.Errorf("%w: %s", domain.ErrApplicationMissing, app.ID)
	}
	t.procurement[app.ID] = app.Clone()
	return nil
}
