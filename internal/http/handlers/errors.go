// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., usage_limit_reached, below_minimum_purchase)
//     identify the exact redemption rule that rejected the request, so clients
//     can render a precise message without parsing message text.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "already_used",
//	  "message": "you have already used this discount code"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Redemption rule failures:
	ErrCodeInvalidFormat        = "invalid_format"
	ErrCodeInvalidCode          = "invalid_code"
	ErrCodeCodeInactive         = "code_inactive"
	ErrCodeCodeNotYetActive     = "code_not_yet_active"
	ErrCodeCodeExpired          = "code_expired"
	ErrCodeUsageLimitReached    = "usage_limit_reached"
	ErrCodeAlreadyUsed          = "already_used"
	ErrCodeTemplateNotEligible  = "template_not_eligible"
	ErrCodeBelowMinimumPurchase = "below_minimum_purchase"
	ErrCodePriceMismatch        = "price_mismatch"

	// Admin lifecycle failures:
	ErrCodeDuplicateCode  = "duplicate_code"
	ErrCodeHasActiveUsage = "has_active_usages"
	ErrCodeUsageNotFound  = "usage_not_found"
	ErrCodeNotReserved    = "usage_not_reserved"
)
