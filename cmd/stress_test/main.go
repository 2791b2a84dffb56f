package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/wms-approval/internal/adapter/catalog"
	"github.com/rl1809/wms-approval/internal/adapter/storage"
	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/core/service"
)

const (
	productID     = 1
	initialStock  = 20
	totalRequests = 50
	approverID    = "manager"
)

func main() {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	store.PutStock(domain.Stock{ProductID: productID, CurrentStock: initialStock, SafetyStock: 5})

	static := catalog.NewStatic([]domain.Product{{ID: productID, SKU: "STRESS-1", Name: "Stress item"}}, nil)
	opts := []service.Option{service.WithCatalog(static)}

	// Every request is sent twice when Redis is reachable to exercise the idempotency guard
	duplicates := false
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		opts = append(opts, service.WithIdempotencyGuard(storage.NewRedisAdapter(rdb)))
		duplicates = true
	}

	workflow := service.NewWorkflowService(store, opts...)
	inventory := service.NewInventoryService(store, service.NewStockLedger(5), workflow,
		service.NewInventoryValidator(static), catalog.Approver(approverID), opts...)

	// Counters
	var successCount, rejectedCount, duplicateCount atomic.Int32
	var mu sync.Mutex
	var submitted []string

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()
	runID := uuid.NewString()

	for i := 0; i < totalRequests; i++ {
		attempts := 1
		if duplicates {
			attempts = 2
		}
		for a := 0; a < attempts; a++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()

				operator := domain.User{ID: fmt.Sprintf("operator-%d", userID), Roles: []domain.Role{domain.RoleOperator}}
				view, err := inventory.Submit(ctx, operator, domain.InventoryOut, service.SubmitInventoryRequest{
					RequestID: fmt.Sprintf("%s-%d", runID, userID),
					Type:      domain.InventoryOut,
					Items:     []service.InventoryItemRequest{{ProductID: productID, Quantity: 1}},
				})
				switch {
				case err == nil:
					successCount.Add(1)
					mu.Lock()
					submitted = append(submitted, view.Application.ID)
					mu.Unlock()
				case errors.Is(err, domain.ErrDuplicateRequest):
					duplicateCount.Add(1)
				default:
					rejectedCount.Add(1)
				}
			}(i)
		}
	}
	wg.Wait()

	// Approve and execute every reservation concurrently
	manager := domain.User{ID: approverID, Roles: []domain.Role{domain.RoleManager}}
	var executed, failed atomic.Int32
	for _, id := range submitted {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := inventory.Approve(ctx, manager, id, true, "stress"); err != nil {
				failed.Add(1)
				return
			}
			_, err := inventory.Execute(ctx, manager, id, []service.ExecutionItem{{ProductID: productID, ActualQty: 1}})
			if err != nil {
				failed.Add(1)
				return
			}
			executed.Add(1)
		}(id)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	rejected := rejectedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Reserved:         %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Duplicates:       %d\n", duplicateCount.Load())
	fmt.Printf("Executed:         %d\n", executed.Load())
	fmt.Printf("Execution Errors: %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	// A user rejected for stock may be rejected again on the retry, so only
	// single-shot runs pin the rejected count.
	if success == int32(initialStock) && (duplicates || rejected == int32(totalRequests-initialStock)) {
		fmt.Printf("PASS: Exactly %d reservations succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
	}

	views, err := inventory.StockSnapshot(ctx)
	if err != nil || len(views) != 1 {
		log.Fatalf("failed to read stock: %v", err)
	}
	final := views[0]
	fmt.Printf("Final Stock: current=%d locked=%d\n", final.CurrentStock, final.LockedStock)

	if final.CurrentStock == 0 && final.LockedStock == 0 {
		fmt.Println("PASS: Stock depleted to 0 with no reservations left")
	} else {
		fmt.Printf("FAIL: Expected current 0 and locked 0, got %d/%d\n", final.CurrentStock, final.LockedStock)
	}
}
