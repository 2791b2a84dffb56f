package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimals a unit price is stored with. Totals
// are rounded to cents.
const PriceScale = 6

type ProcurementStatus string

const (
	ProcurementDraft     ProcurementStatus = "DRAFT"
	ProcurementSubmitted ProcurementStatus = "SUBMITTED"
	ProcurementApproved  ProcurementStatus = "APPROVED"
	ProcurementRejected  ProcurementStatus = "REJECTED"
)

// PendingProcurementStatuses are the states awaiting an approval decision.
var PendingProcurementStatuses = []ProcurementStatus{ProcurementDraft, ProcurementSubmitted}

func (s ProcurementStatus) Terminal() bool {
	return s == ProcurementApproved || s == ProcurementRejected
}

type ProcurementItem struct {
	ProductID     int64
	Quantity      int
	ExpectedPrice decimal.Decimal
}

type ProcurementApplication struct {
	ID          string
	Applicant   string
	Title       string
	TotalAmount decimal.Decimal
	Status      ProcurementStatus
	Items       []ProcurementItem
	FlowID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *ProcurementApplication) Clone() *ProcurementApplication {
	if a == nil {
		return nil
	}
	c := *a
	c.Items = append([]ProcurementItem(nil), a.Items...)
	return &c
}

type ProcurementApplicationView struct {
	Application ProcurementApplication
	Flow        ApprovalFlow
}
