// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DiscountUsage model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// activeStatuses are the non-terminal usage states that count against
// per-user uniqueness and block soft deletion.
var activeStatuses = []string{domain.UsageStatusReserved, domain.UsageStatusConfirmed}

// CreateUsage inserts a usage row. The id is a randomly generated UUID and
// CreatedAt is set to UTC. Usages are only ever created inside the redemption
// transaction, alongside their paired purchase.
func CreateUsage(ctx context.Context, db *gorm.DB, u *domain.DiscountUsage) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(u).Error
}

// GetUsage fetches a usage by primary key, or ErrNotFound.
func GetUsage(ctx context.Context, db *gorm.DB, id string) (*domain.DiscountUsage, error) {
	var u domain.DiscountUsage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// HasActiveUsage reports whether the user already holds a RESERVED or
// CONFIRMED usage of the code. Evaluated inside the redemption transaction,
// this is the anti-double-redemption check.
func HasActiveUsage(ctx context.Context, db *gorm.DB, codeID, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DiscountUsage{}).
		Where("code_id = ? AND user_id = ? AND status IN ?", codeID, userID, activeStatuses).
		Count(&n).Error
	return n > 0, err
}

// CountActiveUsages returns the number of RESERVED or CONFIRMED usages
// referencing the code, used as the soft-delete guard.
func CountActiveUsages(ctx context.Context, db *gorm.DB, codeID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DiscountUsage{}).
		Where("code_id = ? AND status IN ?", codeID, activeStatuses).
		Count(&n).Error
	return n, err
}

// ListRecentUsages returns the newest usages for a code, capped at limit.
func ListRecentUsages(ctx context.Context, db *gorm.DB, codeID string, limit int) ([]domain.DiscountUsage, error) {
	var out []domain.DiscountUsage
	err := db.WithContext(ctx).
		Where("code_id = ?", codeID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateUsageStatus transitions a usage from one status to another. The
// expected current status is part of the WHERE clause so concurrent
// transitions cannot both win; RowsAffected 0 means the usage was not in the
// expected state (or does not exist).
func UpdateUsageStatus(ctx context.Context, db *gorm.DB, id, from, to string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.DiscountUsage{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpiredReservations returns RESERVED usages whose expiry has passed,
// oldest first, capped at limit. The sweeper drains these in batches.
func ListExpiredReservations(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.DiscountUsage, error) {
	var out []domain.DiscountUsage
	err := db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", domain.UsageStatusReserved, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
