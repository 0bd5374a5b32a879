// Package services defines the business logic for discount redemption, the
// admin code lifecycle, and reservation maintenance. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer. Keeping the taxonomy closed here is what lets handlers dispatch on
// errors.Is instead of matching message substrings.
package services

import (
	"errors"
	"fmt"
)

// Redemption-path errors, one per precondition of the apply transaction.
var (
	// ErrInvalidCodeFormat is returned by SanitizeCode when the raw input is
	// empty, out of the 3-50 character range, or reduces to nothing after
	// stripping disallowed characters.
	ErrInvalidCodeFormat = errors.New("code must be 3-50 characters, letters, numbers, and hyphens only")

	// ErrCodeNotFound indicates no code row matches the normalized string.
	ErrCodeNotFound = errors.New("invalid discount code")

	// ErrCodeInactive indicates the code exists but isActive is false.
	ErrCodeInactive = errors.New("this code is no longer active")

	// ErrCodeNotYetActive indicates now precedes the code's validFrom.
	ErrCodeNotYetActive = errors.New("this code is not yet active")

	// ErrCodeExpired indicates now is past the code's validUntil.
	ErrCodeExpired = errors.New("this code has expired")

	// ErrUsageLimitReached indicates currentUses has reached maxUses.
	ErrUsageLimitReached = errors.New("this code has reached its usage limit")

	// ErrAlreadyUsed indicates the user already holds a RESERVED or CONFIRMED
	// usage of this code.
	ErrAlreadyUsed = errors.New("you have already used this code")

	// ErrTemplateNotEligible indicates the template is outside the code's
	// allow-list or inside its deny-list.
	ErrTemplateNotEligible = errors.New("this code is not valid for this template")

	// ErrBelowMinimumPurchase is the sentinel matched by errors.Is for
	// minimum-purchase failures; the concrete error is a MinPurchaseError
	// carrying the required amount.
	ErrBelowMinimumPurchase = errors.New("minimum purchase not met")
)

// Template lookup errors (the read-only catalog collaborator).
var (
	// ErrTemplateNotFound indicates the template id does not exist or the
	// template has been disabled.
	ErrTemplateNotFound = errors.New("template not found or inactive")

	// ErrPriceMismatch indicates the submitted cart total disagrees with the
	// template's listed price beyond a one-cent tolerance.
	ErrPriceMismatch = errors.New("price mismatch")
)

// Admin lifecycle errors.
var (
	// ErrNotFound indicates the requested discount code id does not exist.
	ErrNotFound = errors.New("discount code not found")

	// ErrDuplicateCode indicates a create collided with an existing code string.
	ErrDuplicateCode = errors.New("discount code already exists")

	// ErrInvalidDiscountType rejects creation with a type other than
	// PERCENTAGE or FIXED.
	ErrInvalidDiscountType = errors.New("invalid discount type, must be PERCENTAGE or FIXED")

	// ErrInvalidDiscountValue rejects non-positive values, or percentages
	// above 100.
	ErrInvalidDiscountValue = errors.New("discount value must be positive, and at most 100 for percentages")

	// ErrInvalidAction is returned for PATCH actions other than
	// "activate"/"deactivate".
	ErrInvalidAction = errors.New(`invalid action, must be "activate" or "deactivate"`)

	// ErrUsageNotFound indicates the reservation id does not exist.
	ErrUsageNotFound = errors.New("usage not found")

	// ErrUsageNotReserved indicates a confirm was attempted on a usage that is
	// not in RESERVED state.
	ErrUsageNotReserved = errors.New("usage is not in reserved state")
)

// MinPurchaseError reports a cart total below a code's minimum purchase
// amount. It matches ErrBelowMinimumPurchase under errors.Is so handlers can
// dispatch on the kind while still echoing the required minimum.
type MinPurchaseError struct {
	Min float64
}

// Error implements the error interface.
func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("minimum purchase of $%.2f required for this code", e.Min)
}

// Is reports whether target is the ErrBelowMinimumPurchase sentinel.
func (e *MinPurchaseError) Is(target error) bool {
	return target == ErrBelowMinimumPurchase
}

// ActiveUsagesError blocks a soft delete while reservations or confirmed
// usages still reference the code. Count is echoed to the caller.
type ActiveUsagesError struct {
	Count int64
}

// Error implements the error interface.
func (e *ActiveUsagesError) Error() string {
	return fmt.Sprintf("cannot delete code with %d active usage(s), deactivate instead", e.Count)
}
