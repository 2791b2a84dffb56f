package port

import (
	"context"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

// Catalog resolves product ids. Unknown ids are absent from the result.
type Catalog interface {
	FindProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// LocationRegistry resolves warehouse location ids. Unknown ids are absent from the result.
type LocationRegistry interface {
	FindLocations(ctx context.Context, ids []int64) (map[int64]domain.Location, error)
}

// ApproverDirectory names the user new approval flows are addressed to.
type ApproverDirectory interface {
	Manager(ctx context.Context) (string, error)
}
