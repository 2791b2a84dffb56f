package domain

import (
	"math"
	"time"
)

const (
	// DefaultSafetyStock is assigned to stock rows created on first reference.
	DefaultSafetyStock = 50

	// MaxStockQuantity is the largest quantity a stock column can hold.
	MaxStockQuantity = math.MaxInt32
)

type Stock struct {
	ProductID    int64
	CurrentStock int
	SafetyStock  int
	LockedStock  int
	LocationID   *int64
	Version      int // optimistic locking
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Available is the quantity not reserved by pending outbound applications.
func (s Stock) Available() int {
	return s.CurrentStock - s.LockedStock
}

func (s Stock) BelowSafety() bool {
	return s.CurrentStock < s.SafetyStock
}

type StockView struct {
	ProductID    int64
	SKU          string
	Name         string
	Unit         string
	CurrentStock int
	SafetyStock  int
	LockedStock  int
	BelowSafety  bool
	LocationID   *int64
	LocationCode string
}
