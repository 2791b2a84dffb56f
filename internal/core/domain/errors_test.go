package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{ErrInsufficientStock, ErrValidation},
		{fmt.Errorf("%w: #42", ErrApplicationMissing), ErrNotFound},
		{ErrAlreadyProcessed, ErrConflict},
		{ErrNotAssignedApprover, ErrAuthorization},
		{ErrNegativeStock, ErrInvariant},
		{ErrTotalMismatch, ErrValidation},
		{errors.New("connection refused"), nil},
		{nil, nil},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	if !errors.Is(ErrTotalMismatch, ErrInvariant) {
		t.Error("total mismatch must also be an invariant violation")
	}
}
