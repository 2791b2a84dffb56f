package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/wms-approval/internal/adapter/catalog"
	"github.com/rl1809/wms-approval/internal/adapter/storage"
	"github.com/rl1809/wms-approval/internal/core/domain"
)

var (
	operator     = domain.User{ID: "op-1", Roles: []domain.Role{domain.RoleOperator}}
	purchaser    = domain.User{ID: "buyer-1", Roles: []domain.Role{domain.RolePurchaser}}
	manager      = domain.User{ID: "manager", Roles: []domain.Role{domain.RoleManager}}
	otherManager = domain.User{ID: "manager-2", Roles: []domain.Role{domain.RoleManager}}
	admin        = domain.User{ID: "admin", Roles: []domain.Role{domain.RoleAdmin}}
)

const (
	activeLocation   int64 = 10
	inactiveLocation int64 = 11
)

type recordingSink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (s *recordingSink) Record(_ context.Context, record domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Action)
	}
	return out
}

type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (g *memoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.keys[key]; ok {
		return false, nil
	}
	g.keys[key] = struct{}{}
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

type transitionLog struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (l *transitionLog) ObserveTransition(operation string, _ time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, operation)
	l.errs = append(l.errs, err)
}

type fixture struct {
	store       *storage.MemoryStore
	catalog     *catalog.Static
	audit       *recordingSink
	guard       *memoryGuard
	metrics     *transitionLog
	ledger      *StockLedger
	workflow    *WorkflowService
	inventory   *InventoryService
	procurement *ProcurementService
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func newFixture(t *testing.T, stocks ...domain.Stock) *fixture {
	t.Helper()

	f := &fixture{
		store: storage.NewMemoryStore(),
		catalog: catalog.NewStatic(
			[]domain.Product{
				{ID: 1, SKU: "P-1", Name: "Pallet", Price: price("10.00")},
				{ID: 2, SKU: "P-2", Name: "Crate", Price: price("5.00")},
				{ID: 3, SKU: "P-3", Name: "Unpriced"},
			},
			[]domain.Location{
				{ID: activeLocation, Code: "A-01", Active: true},
				{ID: inactiveLocation, Code: "B-01", Active: false},
			},
		),
		audit:   &recordingSink{},
		guard:   &memoryGuard{keys: make(map[string]struct{})},
		metrics: &transitionLog{},
		ledger:  NewStockLedger(domain.DefaultSafetyStock),
	}
	for _, s := range stocks {
		f.store.PutStock(s)
	}

	opts := []Option{
		WithAuditSink(f.audit),
		WithIdempotencyGuard(f.guard),
		WithMetrics(f.metrics),
		WithCatalog(f.catalog),
	}
	approver := catalog.Approver(manager.ID)
	f.workflow = NewWorkflowService(f.store, opts...)
	f.inventory = NewInventoryService(f.store, f.ledger, f.workflow, NewInventoryValidator(f.catalog), approver, opts...)
	f.procurement = NewProcurementService(f.store, f.workflow,
		NewProcurementValidator(f.catalog, decimal.NewFromInt(1000)), approver, opts...)
	return f
}

func (f *fixture) stock(t *testing.T, productID int64) domain.Stock {
	t.Helper()
	stocks, err := f.store.ListStocks(context.Background())
	if err != nil {
		t.Fatalf("list stocks: %v", err)
	}
	for _, s := range stocks {
		if s.ProductID == productID {
			return s
		}
	}
	t.Fatalf("no stock row for product %d", productID)
	return domain.Stock{}
}

func outbound(items ...InventoryItemRequest) SubmitInventoryRequest {
	return SubmitInventoryRequest{Type: domain.InventoryOut, Items: items}
}

func inbound(items ...InventoryItemRequest) SubmitInventoryRequest {
	return SubmitInventoryRequest{Type: domain.InventoryIn, Items: items}
}

func ptr[T any](v T) *T {
	return &v
}
