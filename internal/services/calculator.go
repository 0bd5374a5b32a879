// Package services – discount calculation
//
// Pure pricing arithmetic shared by the redemption transaction and the public
// preview endpoint. Deterministic, two-decimal currency precision, never a
// negative final total, never a discount exceeding the cart total.
package services

import (
	"math"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// DiscountResult is the outcome of applying a code's terms to a cart total.
type DiscountResult struct {
	DiscountAmount float64
	FinalTotal     float64
}

// CalculateDiscount computes the discount amount and final total for a cart.
//
// PERCENTAGE: cartTotal * value / 100, clamped to maxDiscountAmount when set.
// FIXED: the value itself, also clamped to maxDiscountAmount when set.
// Either way the discount never exceeds the cart total, both outputs are
// rounded to cents, and the final total is floored at zero.
func CalculateDiscount(discountType string, discountValue float64, maxDiscountAmount *float64, cartTotal float64) DiscountResult {
	var discount float64
	switch discountType {
	case domain.DiscountTypePercentage:
		discount = cartTotal * discountValue / 100
	case domain.DiscountTypeFixed:
		discount = discountValue
	}

	if maxDiscountAmount != nil {
		discount = math.Min(discount, *maxDiscountAmount)
	}
	discount = math.Min(discount, cartTotal)
	discount = roundCents(discount)

	final := roundCents(cartTotal - discount)
	if final < 0 {
		final = 0
	}
	return DiscountResult{DiscountAmount: discount, FinalTotal: final}
}

// roundCents rounds to two decimal places, half away from zero.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
