package harberger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every error is surfaced
// synchronously to the caller and nothing is retried by the engine.
var (
	// Validation errors -- rejected before any state change.
	ErrInvalidRecipient = errors.New("harberger: recipient account is empty")
	ErrInvalidPrice     = errors.New("harberger: price outside [MinPrice, MaxPrice]")
	ErrDuplicateAsset   = errors.New("harberger: asset already registered")
	ErrInvalidParams    = errors.New("harberger: invalid parameters")

	// Lookup errors.
	ErrAssetNotFound = errors.New("harberger: asset not found")

	// Authorization errors.
	ErrUnauthorized = errors.New("harberger: caller is not the current holder")
	ErrNoCaller     = errors.New("harberger: no caller account in context")

	// Timing errors.
	ErrMarginNotMet = errors.New("harberger: margin duration has not elapsed since last settlement")

	// Payment errors.
	ErrInsufficientPayment = errors.New("harberger: tendered amount does not cover what is owed")

	// Default-state errors.
	ErrAssetDefaulted = errors.New("harberger: asset is defaulted")

	// Transfer failures -- the enclosing operation aborts in full.
	ErrTransferFailed = errors.New("harberger: value transfer failed")

	// Guard errors.
	ErrReentrantCall = errors.New("harberger: re-entrant call on locked asset")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("harberger: validation failed for %s: %s", e.Field, e.Message)
}

// Is lets errors.Is match any ValidationError against ErrInvalidParams.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidParams
}
