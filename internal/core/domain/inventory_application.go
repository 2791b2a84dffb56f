package domain

import "time"

type InventoryType string

const (
	InventoryIn  InventoryType = "IN"
	InventoryOut InventoryType = "OUT"
)

func (t InventoryType) Valid() bool {
	return t == InventoryIn || t == InventoryOut
}

func (t InventoryType) BusinessType() BusinessType {
	if t == InventoryIn {
		return BusinessInventoryIn
	}
	return BusinessInventoryOut
}

type InventoryApplicationStatus string

const (
	InventoryCreated         InventoryApplicationStatus = "CREATED"
	InventoryPendingApproval InventoryApplicationStatus = "PENDING_APPROVAL"
	InventoryApproved        InventoryApplicationStatus = "APPROVED"
	InventoryExecuting       InventoryApplicationStatus = "EXECUTING"
	InventoryCompleted       InventoryApplicationStatus = "COMPLETED"
	InventoryRejected        InventoryApplicationStatus = "REJECTED"
)

type InventoryItem struct {
	ProductID    int64
	RequestedQty int
	ActualQty    *int
	LocationID   *int64
}

type InventoryApplication struct {
	ID        string
	Type      InventoryType
	Applicant string
	Reason    string
	Status    InventoryApplicationStatus
	Items     []InventoryItem
	FlowID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *InventoryApplication) Clone() *InventoryApplication {
	if a == nil {
		return nil
	}
	c := *a
	c.Items = make([]InventoryItem, len(a.Items))
	for i, item := range a.Items {
		if item.ActualQty != nil {
			q := *item.ActualQty
			item.ActualQty = &q
		}
		if item.LocationID != nil {
			l := *item.LocationID
			item.LocationID = &l
		}
		c.Items[i] = item
	}
	return &c
}

// InventoryApplicationView is what callers get back from every inventory operation.
type InventoryApplicationView struct {
	Application InventoryApplication
	Flow        ApprovalFlow
}
