package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

func TestMemoryStore_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		if err := tx.InsertStockIfAbsent(ctx, domain.Stock{ProductID: 1, CurrentStock: 10}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got: %v", err)
	}

	stocks, _ := store.ListStocks(ctx)
	if len(stocks) != 0 {
		t.Fatalf("expected rollback, got %+v", stocks)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return tx.InsertStockIfAbsent(ctx, domain.Stock{ProductID: 1, CurrentStock: 10})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stocks, _ = store.ListStocks(ctx)
	if len(stocks) != 1 || stocks[0].CurrentStock != 10 {
		t.Errorf("unexpected stocks %+v", stocks)
	}
}

func TestMemoryStore_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutStock(domain.Stock{ProductID: 1, CurrentStock: 10})

	err := store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		stock, err := tx.GetStock(ctx, 1)
		if err != nil {
			return err
		}
		stock.LockedStock = 4
		if err := tx.UpdateStock(ctx, *stock); err != nil {
			return err
		}

		again, err := tx.GetStock(ctx, 1)
		if err != nil {
			return err
		}
		if again.LockedStock != 4 || again.Version != 1 {
			t.Errorf("staged write not visible: %+v", again)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemoryStore_UpdateStock_OptimisticLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutStock(domain.Stock{ProductID: 1, CurrentStock: 10, Version: 3})

	err := store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return tx.UpdateStock(ctx, domain.Stock{ProductID: 1, CurrentStock: 9, Version: 2})
	})
	if !errors.Is(err, port.ErrOptimisticLock) {
		t.Errorf("expected ErrOptimisticLock, got: %v", err)
	}

	err = store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return tx.UpdateStock(ctx, domain.Stock{ProductID: 99, Version: 0})
	})
	if !errors.Is(err, domain.ErrStockNotFound) {
		t.Errorf("expected ErrStockNotFound, got: %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	app := &domain.InventoryApplication{
		ID: "a1", Type: domain.InventoryOut, Status: domain.InventoryPendingApproval,
		Items: []domain.InventoryItem{{ProductID: 1, RequestedQty: 2}},
	}
	err := store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return tx.InsertInventoryApplication(ctx, app)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	app.Items[0].RequestedQty = 99
	got, _ := store.FindInventoryApplication(ctx, "a1")
	if got.Items[0].RequestedQty != 2 {
		t.Errorf("store shares memory with caller: %+v", got.Items)
	}

	got.Status = domain.InventoryRejected
	again, _ := store.FindInventoryApplication(ctx, "a1")
	if again.Status != domain.InventoryPendingApproval {
		t.Errorf("store shares memory with caller: %s", again.Status)
	}
}

func TestMemoryStore_InsertConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	flow := &domain.ApprovalFlow{ID: "f1", Approver: "mgr", Status: domain.ApprovalApproving}
	insert := func() error {
		return store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
			return tx.InsertFlow(ctx, flow)
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := insert(); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict, got: %v", err)
	}
}

func TestMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		for i, f := range []domain.ApprovalFlow{
			{ID: "f2", Approver: "mgr", Status: domain.ApprovalApproving, CreatedAt: base.Add(time.Minute)},
			{ID: "f1", Approver: "mgr", Status: domain.ApprovalApproving, CreatedAt: base},
			{ID: "f3", Approver: "mgr", Status: domain.ApprovalApproved, CreatedAt: base},
			{ID: "f4", Approver: "other", Status: domain.ApprovalApproving, CreatedAt: base},
		} {
			if err := tx.InsertFlow(ctx, &f); err != nil {
				t.Fatalf("insert %d: %v", i, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flows, err := store.ListFlowsByApprover(ctx, "mgr", []domain.ApprovalStatus{domain.ApprovalApproving})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 2 || flows[0].ID != "f1" || flows[1].ID != "f2" {
		t.Errorf("unexpected flows %+v", flows)
	}
}

func TestMemoryStore_SerializesTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutStock(domain.Stock{ProductID: 1})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
				stock, err := tx.GetStock(ctx, 1)
				if err != nil {
					return err
				}
				stock.CurrentStock++
				return tx.UpdateStock(ctx, *stock)
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	stocks, _ := store.ListStocks(ctx)
	if stocks[0].CurrentStock != 50 || stocks[0].Version != 50 {
		t.Errorf("lost updates: %+v", stocks[0])
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewMemoryStore().WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("expected canceled without running fn, got %v (called=%v)", err, called)
	}
}
