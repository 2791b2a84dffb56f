package port

import (
	"context"
	"fmt"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

var (
	ErrOptimisticLock = fmt.Errorf("%w: optimistic lock conflict", domain.ErrConflict)
	// ErrLockContention means the store aborted the unit of work on a
	// deadlock or lock wait timeout. Nothing was committed; the call may be retried.
	ErrLockContention = fmt.Errorf("%w: transaction aborted on lock contention", domain.ErrConflict)
)

// Store runs units of work. Everything done through the Tx handed to fn
// commits together or not at all.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListStocks(ctx context.Context) ([]domain.Stock, error)
	FindInventoryApplication(ctx context.Context, id string) (*domain.InventoryApplication, error)
	ListInventoryApplications(ctx context.Context, typ domain.InventoryType, statuses []domain.InventoryApplicationStatus) ([]domain.InventoryApplication, error)
	FindProcurementApplication(ctx context.Context, id string) (*domain.ProcurementApplication, error)
	ListProcurementApplications(ctx context.Context, applicant string, statuses []domain.ProcurementStatus) ([]domain.ProcurementApplication, error)
	FindFlow(ctx context.Context, id string) (*domain.ApprovalFlow, error)
	ListFlowsByApprover(ctx context.Context, approver string, statuses []domain.ApprovalStatus) ([]domain.ApprovalFlow, error)
}

// Tx is the transactional view of the four persisted collections.
// Get* methods return nil, nil when the row does not exist and hold the
// row for the rest of the transaction.
type Tx interface {
	GetStock(ctx context.Context, productID int64) (*domain.Stock, error)
	// InsertStockIfAbsent creates the row unless another transaction already did.
	InsertStockIfAbsent(ctx context.Context, stock domain.Stock) error
	// UpdateStock fails with ErrOptimisticLock when stock.Version is stale.
	UpdateStock(ctx context.Context, stock domain.Stock) error

	InsertFlow(ctx context.Context, flow *domain.ApprovalFlow) error
	GetFlow(ctx context.Context, id string) (*domain.ApprovalFlow, error)
	UpdateFlow(ctx context.Context, flow *domain.ApprovalFlow) error

	InsertInventoryApplication(ctx context.Context, app *domain.InventoryApplication) error
	GetInventoryApplication(ctx context.Context, id string) (*domain.InventoryApplication, error)
	UpdateInventoryApplication(ctx context.Context, app *domain.InventoryApplication) error

	InsertProcurementApplication(ctx context.Context, app *domain.ProcurementApplication) error
	GetProcurementApplication(ctx context.Context, id string) (*domain.ProcurementApplication, error)
	UpdateProcurementApplication(ctx context.Context, app *domain.ProcurementApplication) error
}
