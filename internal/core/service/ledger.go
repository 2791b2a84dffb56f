package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

// StockLedger owns the current/safety/locked arithmetic. Every method
// reads and writes the row through tx, which holds it until commit, so two
// mutations of one product never interleave.
type StockLedger struct {
	safetyStock int
	now         func() time.Time
}

func NewStockLedger(safetyStock int) *StockLedger {
	if safetyStock < 0 {
		safetyStock = domain.DefaultSafetyStock
	}
	return &StockLedger{safetyStock: safetyStock, now: time.Now}
}

// EnsureExists creates the row on first reference. The insert goes first so
// that a missing row is never read under lock, which in MySQL would take a gap
// lock that a concurrent insert of the same product deadlocks on.
func (l *StockLedger) EnsureExists(ctx context.Context, tx port.Tx, productID int64) (*domain.Stock, error) {
	now := l.now()
	err := tx.InsertStockIfAbsent(ctx, domain.Stock{
		ProductID:   productID,
		SafetyStock: l.safetyStock,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("insert stock: %w", err)
	}

	return l.load(ctx, tx, productID)
}

// Lock reserves qty for a pending outbound application. There is no upper
// bound here; callers validate availability first.
func (l *StockLedger) Lock(ctx context.Context, tx port.Tx, productID int64, qty int) (*domain.Stock, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: lock %d of product %d", domain.ErrInvalidQuantity, qty, productID)
	}
	stock, err := l.EnsureExists(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	stock.LockedStock += qty
	return stock, l.save(ctx, tx, stock)
}

// Release clamps at zero so a double release cannot corrupt the row.
func (l *StockLedger) Release(ctx context.Context, tx port.Tx, productID int64, qty int) (*domain.Stock, error) {
	stock, err := l.load(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	stock.LockedStock = max(0, stock.LockedStock-qty)
	return stock, l.save(ctx, tx, stock)
}

func (l *StockLedger) AdjustInbound(ctx context.Context, tx port.Tx, productID int64, qty int, locationID *int64) (*domain.Stock, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: inbound %d of product %d", domain.ErrInvalidQuantity, qty, productID)
	}
	stock, err := l.EnsureExists(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	if qty > domain.MaxStockQuantity-stock.CurrentStock {
		return nil, fmt.Errorf("%w: product %d holds %d, receiving %d",
			domain.ErrStockOverflow, productID, stock.CurrentStock, qty)
	}
	stock.CurrentStock += qty
	if locationID != nil {
		loc := *locationID
		stock.LocationID = &loc
	}
	return stock, l.save(ctx, tx, stock)
}

// AdjustOutbound drops the reservation of reserved units and takes qty off
// the current stock. It is the hard guard against overselling.
func (l *StockLedger) AdjustOutbound(ctx context.Context, tx port.Tx, productID int64, reserved, qty int) (*domain.Stock, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: outbound %d of product %d", domain.ErrInvalidQuantity, qty, productID)
	}
	stock, err := l.load(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	stock.LockedStock = max(0, stock.LockedStock-reserved)
	stock.CurrentStock -= qty
	if stock.CurrentStock < 0 {
		return nil, fmt.Errorf("%w: product %d would drop to %d", domain.ErrNegativeStock, productID, stock.CurrentStock)
	}
	return stock, l.save(ctx, tx, stock)
}

func (l *StockLedger) load(ctx context.Context, tx port.Tx, productID int64) (*domain.Stock, error) {
	stock, err := tx.GetStock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	if stock == nil {
		return nil, fmt.Errorf("%w: product %d", domain.ErrStockNotFound, productID)
	}
	return stock, nil
}

func (l *StockLedger) save(ctx context.Context, tx port.Tx, stock *domain.Stock) error {
	stock.UpdatedAt = l.now()
	if err := tx.UpdateStock(ctx, *stock); err != nil {
		return fmt.Errorf("update stock %d: %w", stock.ProductID, err)
	}
	stock.Version++
	return nil
}

// lockOrder returns the indexes of items by ascending product id. Ledger rows
// are always locked in this order so two transactions never wait on each other.
func lockOrder[T any](items []T, productID func(T) int64) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(productID(items[a]), productID(items[b]))
	})
	return order
}

func inventoryItemProduct(item domain.InventoryItem) int64 { return item.ProductID }

func requestItemProduct(item InventoryItemRequest) int64 { return item.ProductID }

func executionItemProduct(item ExecutionItem) int64 { return item.ProductID }
