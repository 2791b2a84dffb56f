package domain

import "time"

type BusinessType string

const (
	BusinessInventoryIn  BusinessType = "INVENTORY_IN"
	BusinessInventoryOut BusinessType = "INVENTORY_OUT"
	BusinessProcurement  BusinessType = "PROCUREMENT"
)

type ApprovalStatus string

const (
	ApprovalApproving ApprovalStatus = "APPROVING"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalRejected  ApprovalStatus = "REJECTED"
)

type ApprovalResult string

const (
	ResultPending  ApprovalResult = "PENDING"
	ResultApproved ApprovalResult = "APPROVED"
	ResultRejected ApprovalResult = "REJECTED"
)

type ApprovalNode struct {
	Approver  string
	Result    ApprovalResult
	Comment   string
	DecidedAt *time.Time
}

// ApprovalFlow is the single-approver decision record owned by one application.
type ApprovalFlow struct {
	ID           string
	Applicant    string
	Approver     string
	BusinessType BusinessType
	Status       ApprovalStatus
	Nodes        []ApprovalNode
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (f *ApprovalFlow) Clone() *ApprovalFlow {
	if f == nil {
		return nil
	}
	c := *f
	c.Nodes = make([]ApprovalNode, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.DecidedAt != nil {
			t := *n.DecidedAt
			n.DecidedAt = &t
		}
		c.Nodes[i] = n
	}
	return &c
}
