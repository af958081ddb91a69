package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrItemInactive        = errors.New("item is inactive")
	ErrUnknownPerson       = errors.New("unknown person")
	ErrUnknownItem         = errors.New("unknown item")
	ErrUnknownTransaction  = errors.New("unknown transaction")
	ErrPartialBatchFailure = errors.New("partial batch failure")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAmountOverflow     = errors.New("amount out of range")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidPricingMode = errors.New("invalid pricing mode")
	ErrInvalidName        = errors.New("name cannot be empty")
	ErrEmptyGroup         = errors.New("at least one person is required")
	ErrEmptyCorrection    = errors.New("correction needs a quantity or a price")
	ErrNothingToUndo      = errors.New("nothing to undo")
)

// PersonFailure is one failed entry of a split-billing request.
type PersonFailure struct {
	PersonID int64
	Err      error
}

// PartialFailureError reports a split-billing request where only some of the
// per-person entries were recorded. The recorded ones stay committed.
type PartialFailureError struct {
	Requested int
	Succeeded int
	Failures  []PersonFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("person %d: %v", f.PersonID, f.Err))
	}
	return fmt.Sprintf("%s: recorded %d of %d (%s)",
		ErrPartialBatchFailure, e.Succeeded, e.Requested, strings.Join(parts, "; "))
}

func (e *PartialFailureError) Unwrap() error {
	return ErrPartialBatchFailure
}
