package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAuthorization = errors.New("authorization error")
	ErrInvariant     = errors.New("invariant violation")
)

var (
	ErrInsufficientStock   = fmt.Errorf("%w: insufficient available quantity", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidPrice        = fmt.Errorf("%w: invalid price", ErrValidation)
	ErrAmountLimit         = fmt.Errorf("%w: total amount exceeds configured limit", ErrValidation)
	ErrLocationInactive    = fmt.Errorf("%w: warehouse location inactive", ErrValidation)
	ErrEmptyItems          = fmt.Errorf("%w: at least one item is required", ErrValidation)
	ErrExecutionMismatch   = fmt.Errorf("%w: execution items do not match application items", ErrValidation)
	ErrApplicationMissing  = fmt.Errorf("%w: application", ErrNotFound)
	ErrFlowNotFound        = fmt.Errorf("%w: approval flow", ErrNotFound)
	ErrProductNotFound     = fmt.Errorf("%w: product", ErrNotFound)
	ErrStockNotFound       = fmt.Errorf("%w: stock", ErrNotFound)
	ErrLocationNotFound    = fmt.Errorf("%w: warehouse location", ErrNotFound)
	ErrApproverMissing     = fmt.Errorf("%w: approver not configured", ErrNotFound)
	ErrAlreadyProcessed    = fmt.Errorf("%w: application already processed", ErrConflict)
	ErrNotApproved         = fmt.Errorf("%w: application not approved", ErrConflict)
	ErrTypeMismatch        = fmt.Errorf("%w: application type mismatch", ErrConflict)
	ErrDuplicateRequest    = fmt.Errorf("%w: duplicate request", ErrConflict)
	ErrNotAssignedApprover = fmt.Errorf("%w: user is not the assigned approver", ErrAuthorization)
	ErrForbidden           = fmt.Errorf("%w: role not permitted", ErrAuthorization)
	ErrNegativeStock       = fmt.Errorf("%w: stock cannot become negative", ErrInvariant)
	ErrStockOverflow       = fmt.Errorf("%w: stock exceeds maximum quantity", ErrInvariant)

	// ErrTotalMismatch is both a rejected input and a broken pricing invariant.
	ErrTotalMismatch = fmt.Errorf("total amount mismatch: %w: %w", ErrValidation, ErrInvariant)
)

var kinds = []error{ErrValidation, ErrNotFound, ErrConflict, ErrAuthorization, ErrInvariant}

// KindOf returns the first kind sentinel err wraps, or nil for errors outside
// the taxonomy such as storage failures.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
