package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

// DefaultProcurementCeiling caps the total amount of one procurement application.
var DefaultProcurementCeiling = decimal.NewFromInt(100000)

type InventoryItemRequest struct {
	ProductID  int64
	Quantity   int
	LocationID *int64
}

type ExecutionItem struct {
	ProductID  int64
	ActualQty  int
	LocationID *int64
}

type ProcurementItemRequest struct {
	ProductID     int64
	Quantity      int
	ExpectedPrice decimal.NullDecimal
}

type InventoryValidator struct {
	locations port.LocationRegistry
}

func NewInventoryValidator(locations port.LocationRegistry) *InventoryValidator {
	return &InventoryValidator{locations: locations}
}

// ValidateCreate checks a submission against the ledger as seen through tx.
// Outbound items need an existing row with enough available quantity;
// inbound items may name products the ledger has not seen yet.
// Rows are read in product order.
func (v *InventoryValidator) ValidateCreate(ctx context.Context, tx port.Tx, typ domain.InventoryType, items []InventoryItemRequest) error {
	if len(items) == 0 {
		return domain.ErrEmptyItems
	}

	seen := make(map[int64]struct{}, len(items))
	locationIDs := make([]*int64, 0, len(items))
	for _, item := range items {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: product must be specified for each item", domain.ErrValidation)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: product %d listed twice", domain.ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		if err := checkQuantity(item.ProductID, item.Quantity); err != nil {
			return err
		}
		locationIDs = append(locationIDs, item.LocationID)
	}

	locations, err := v.loadLocations(ctx, locationIDs)
	if err != nil {
		return err
	}

	for _, i := range lockOrder(items, requestItemProduct) {
		item := items[i]
		if err := checkLocation(locations, item.LocationID, true); err != nil {
			return err
		}
		// inbound items never read the ledger; their rows are created on first reference
		if typ == domain.InventoryIn {
			continue
		}

		stock, err := tx.GetStock(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("get stock: %w", err)
		}
		if stock == nil {
			return fmt.Errorf("%w: product %d does not exist in inventory", domain.ErrStockNotFound, item.ProductID)
		}
		if item.Quantity > stock.Available() {
			return fmt.Errorf("%w: product %d requests %d, %d available",
				domain.ErrInsufficientStock, item.ProductID, item.Quantity, stock.Available())
		}
	}
	return nil
}

// ValidateExecution re-runs the availability check with actual quantities.
// The application's own reservation counts as available to it. Every
// application item must be executed exactly once.
func (v *InventoryValidator) ValidateExecution(ctx context.Context, tx port.Tx, app *domain.InventoryApplication, items []ExecutionItem) error {
	if len(items) != len(app.Items) {
		return fmt.Errorf("%w: got %d items, application has %d", domain.ErrExecutionMismatch, len(items), len(app.Items))
	}

	requested := make(map[int64]domain.InventoryItem, len(app.Items))
	for _, item := range app.Items {
		requested[item.ProductID] = item
	}

	seen := make(map[int64]struct{}, len(items))
	locationIDs := make([]*int64, 0, len(items))
	for _, item := range items {
		planned, ok := requested[item.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d is not part of application %s", domain.ErrExecutionMismatch, item.ProductID, app.ID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: product %d listed twice", domain.ErrExecutionMismatch, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		if item.ActualQty < 0 {
			return fmt.Errorf("%w: product %d actual quantity %d", domain.ErrValidation, item.ProductID, item.ActualQty)
		}
		locationIDs = append(locationIDs, targetLocation(item, planned))
	}

	locations, err := v.loadLocations(ctx, locationIDs)
	if err != nil {
		return err
	}

	for _, i := range lockOrder(items, executionItemProduct) {
		item := items[i]
		planned := requested[item.ProductID]
		if err := checkLocation(locations, targetLocation(item, planned), true); err != nil {
			return err
		}

		stock, err := tx.GetStock(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("get stock: %w", err)
		}
		if stock == nil {
			return fmt.Errorf("%w: product %d does not exist in inventory", domain.ErrStockNotFound, item.ProductID)
		}

		available := stock.Available() + min(planned.RequestedQty, stock.LockedStock)
		if item.ActualQty > available {
			return fmt.Errorf("%w: product %d ships %d, %d available",
				domain.ErrNegativeStock, item.ProductID, item.ActualQty, available)
		}
	}
	return nil
}

// ValidateInboundCompletion checks that the locations of an approved inbound
// application still exist. Deactivation after submission does not block receipt.
func (v *InventoryValidator) ValidateInboundCompletion(ctx context.Context, app *domain.InventoryApplication) error {
	locationIDs := make([]*int64, 0, len(app.Items))
	for _, item := range app.Items {
		locationIDs = append(locationIDs, item.LocationID)
	}
	locations, err := v.loadLocations(ctx, locationIDs)
	if err != nil {
		return err
	}
	for _, item := range app.Items {
		if err := checkLocation(locations, item.LocationID, false); err != nil {
			return err
		}
	}
	return nil
}

func (v *InventoryValidator) loadLocations(ctx context.Context, ids []*int64) (map[int64]domain.Location, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		unique = append(unique, *id)
	}
	if len(unique) == 0 {
		return map[int64]domain.Location{}, nil
	}
	if v.locations == nil {
		return nil, fmt.Errorf("%w: no location registry configured", domain.ErrLocationNotFound)
	}

	locations, err := v.locations.FindLocations(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("find locations: %w", err)
	}
	return locations, nil
}

func checkLocation(locations map[int64]domain.Location, id *int64, requireActive bool) error {
	if id == nil {
		return nil
	}
	location, ok := locations[*id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrLocationNotFound, *id)
	}
	if requireActive && !location.Active {
		return fmt.Errorf("%w: %s", domain.ErrLocationInactive, location.Code)
	}
	return nil
}

func checkQuantity(productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: product %d", domain.ErrInvalidQuantity, productID)
	}
	if qty > domain.MaxStockQuantity {
		return fmt.Errorf("%w: product %d quantity %d exceeds %d",
			domain.ErrInvalidQuantity, productID, qty, domain.MaxStockQuantity)
	}
	return nil
}

func targetLocation(item ExecutionItem, planned domain.InventoryItem) *int64 {
	if item.LocationID != nil {
		return item.LocationID
	}
	return planned.LocationID
}

// ProcurementValidation carries the recomputed total and the unit price
// resolved for each item, in request order.
type ProcurementValidation struct {
	Total  decimal.Decimal
	Prices []decimal.Decimal
}

type ProcurementValidator struct {
	catalog port.Catalog
	ceiling decimal.Decimal
}

func NewProcurementValidator(catalog port.Catalog, ceiling decimal.Decimal) *ProcurementValidator {
	if !ceiling.IsPositive() {
		ceiling = DefaultProcurementCeiling
	}
	return &ProcurementValidator{catalog: catalog, ceiling: ceiling}
}

func (v *ProcurementValidator) ValidateCreate(ctx context.Context, title string, declared decimal.Decimal, items []ProcurementItemRequest) (*ProcurementValidation, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", domain.ErrValidation)
	}
	if !declared.IsPositive() {
		return nil, fmt.Errorf("%w: total amount must be positive", domain.ErrValidation)
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyItems
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.ProductID <= 0 {
			return nil, fmt.Errorf("%w: product must be specified for each item", domain.ErrValidation)
		}
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	products, err := v.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	if len(products) != len(ids) {
		return nil, fmt.Errorf("%w: contains invalid product references", domain.ErrProductNotFound)
	}

	result := &ProcurementValidation{Total: decimal.Zero, Prices: make([]decimal.Decimal, 0, len(items))}
	for _, item := range items {
		if err := checkQuantity(item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		price := item.ExpectedPrice
		if !price.Valid {
			price = products[item.ProductID].Price
		}
		if !price.Valid || price.Decimal.IsNegative() {
			return nil, fmt.Errorf("%w: product %d", domain.ErrInvalidPrice, item.ProductID)
		}
		if !price.Decimal.Equal(price.Decimal.Round(domain.PriceScale)) {
			return nil, fmt.Errorf("%w: product %d price %s has more than %d decimals",
				domain.ErrInvalidPrice, item.ProductID, price.Decimal.String(), domain.PriceScale)
		}
		result.Prices = append(result.Prices, price.Decimal)
		result.Total = result.Total.Add(price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	result.Total = result.Total.Round(2)
	if result.Total.GreaterThan(v.ceiling) {
		return nil, fmt.Errorf("%w: %s > %s", domain.ErrAmountLimit, result.Total.StringFixed(2), v.ceiling.StringFixed(2))
	}
	if !declared.Round(2).Equal(result.Total) {
		return nil, fmt.Errorf("%w: declared %s, computed %s",
			domain.ErrTotalMismatch, declared.StringFixed(2), result.Total.StringFixed(2))
	}
	return result, nil
}
