// Package catalog serves product, location and approver lookups from
// configuration.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rl1809/wms-approval/internal/config"
	"github.com/rl1809/wms-approval/internal/core/domain"
)

// Static is an immutable in-memory Catalog and LocationRegistry.
type Static struct {
	products  map[int64]domain.Product
	locations map[int64]domain.Location
}

func NewStatic(products []domain.Product, locations []domain.Location) *Static {
	s := &Static{
		products:  make(map[int64]domain.Product, len(products)),
		locations: make(map[int64]domain.Location, len(locations)),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	for _, l := range locations {
		s.locations[l.ID] = l
	}
	return s
}

// FromConfig expects a validated config.
func FromConfig(cfg config.CatalogConfig) (*Static, error) {
	products := make([]domain.Product, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		product := domain.Product{ID: p.ID, SKU: p.SKU, Name: p.Name, Unit: p.Unit}
		if p.Price != "" {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return nil, fmt.Errorf("product %d price: %w", p.ID, err)
			}
			product.Price = decimal.NewNullDecimal(price)
		}
		if product.SKU == "" {
			product.SKU = fmt.Sprintf("SKU-%d", p.ID)
		}
		products = append(products, product)
	}

	locations := make([]domain.Location, 0, len(cfg.Locations))
	for _, l := range cfg.Locations {
		locations = append(locations, domain.Location{ID: l.ID, Code: l.Code, Name: l.Name, Active: l.Active})
	}
	return NewStatic(products, locations), nil
}

func (s *Static) FindProducts(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	found := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (s *Static) ListProducts(_ context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *Static) FindLocations(_ context.Context, ids []int64) (map[int64]domain.Location, error) {
	found := make(map[int64]domain.Location, len(ids))
	for _, id := range ids {
		if l, ok := s.locations[id]; ok {
			found[id] = l
		}
	}
	return found, nil
}

// Locations lists every configured location ordered by id.
func (s *Static) Locations() []domain.Location {
	locations := make([]domain.Location, 0, len(s.locations))
	for _, l := range s.locations {
		locations = append(locations, l)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	return locations
}

// Approver always names the same manager.
type Approver string

func (a Approver) Manager(_ context.Context) (string, error) {
	if a == "" {
		return "", domain.ErrApproverMissing
	}
	return string(a), nil
}
