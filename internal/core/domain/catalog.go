package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    int64
	SKU   string
	Name  string
	Unit  string
	Price decimal.NullDecimal
}

type Location struct {
	ID     int64
	Code   string
	Name   string
	Active bool
}

// AuditRecord is one textual entry per committed state transition.
type AuditRecord struct {
	Module   string
	Action   string
	Details  string
	Operator string
	At       time.Time
}
