// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over the usage
// table. Their main consumer is the consistency cross-check between the
// denormalized counters on discount_codes and the ground truth in
// discount_usages (used by tests and by operators debugging drift).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// UsageTotals is the recomputed view of a code's counters derived from its
// usage rows rather than the denormalized columns.
type UsageTotals struct {
	// ActiveUses counts RESERVED and CONFIRMED usages; it should equal the
	// code row's current_uses at all times.
	ActiveUses int64
	// ConfirmedRevenue sums final_amount over CONFIRMED usages; it should
	// equal total_revenue.
	ConfirmedRevenue float64
	// ConfirmedDiscount sums discount_amount over CONFIRMED usages; it should
	// equal total_discount_given.
	ConfirmedDiscount float64
}

// RecomputeUsageTotals derives UsageTotals for a code from the usage table.
func RecomputeUsageTotals(ctx context.Context, db *gorm.DB, codeID string) (UsageTotals, error) {
	var t UsageTotals

	err := db.WithContext(ctx).
		Model(&domain.DiscountUsage{}).
		Where("code_id = ? AND status IN ?", codeID, activeStatuses).
		Count(&t.ActiveUses).Error
	if err != nil {
		return t, err
	}

	var row struct {
		Revenue  float64
		Discount float64
	}
	err = db.WithContext(ctx).
		Model(&domain.DiscountUsage{}).
		Select("COALESCE(SUM(final_amount), 0) AS revenue, COALESCE(SUM(discount_amount), 0) AS discount").
		Where("code_id = ? AND status = ?", codeID, domain.UsageStatusConfirmed).
		Scan(&row).Error
	if err != nil {
		return t, err
	}
	t.ConfirmedRevenue = row.Revenue
	t.ConfirmedDiscount = row.Discount
	return t, nil
}
