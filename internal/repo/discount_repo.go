// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DiscountCode model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a code is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation (e.g., two codes with
// the same code string).
var ErrDuplicate = errors.New("duplicate")

// CodeFilter narrows ListCodes/CountCodes. Nil pointer fields are ignored.
type CodeFilter struct {
	IsActive *bool
	IsPublic *bool
	Search   string // matches code or description, case-insensitive
}

// CreateCode inserts a new DiscountCode row. The id is a randomly generated
// UUID and CreatedAt is set to UTC. Unique violations on the code string are
// returned as ErrDuplicate.
func CreateCode(ctx context.Context, db *gorm.DB, code *domain.DiscountCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	code.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(code).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetCodeByID fetches a code by primary key, or ErrNotFound.
func GetCodeByID(ctx context.Context, db *gorm.DB, id string) (*domain.DiscountCode, error) {
	var c domain.DiscountCode
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCodeByCode fetches a code by its normalized code string, or ErrNotFound.
// Callers are expected to have run the string through services.SanitizeCode
// first; lookup is exact-match.
func GetCodeByCode(ctx context.Context, db *gorm.DB, code string) (*domain.DiscountCode, error) {
	var c domain.DiscountCode
	if err := db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCodeFields applies a column map to a code row. The map's keys must be
// column names; building it from the admin allow-list happens in the service
// layer. Returns ErrNotFound when no row matched.
func UpdateCodeFields(ctx context.Context, db *gorm.DB, id string, fields map[string]interface{}) error {
	res := db.WithContext(ctx).
		Model(&domain.DiscountCode{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementCodeUses advances current_uses by one with the usage ceiling
// folded into the WHERE clause, so the counter can never race past max_uses
// regardless of the surrounding isolation level. RowsAffected 0 means the
// ceiling was hit (or the row vanished); callers translate that to
// ErrUsageLimitReached.
func IncrementCodeUses(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.DiscountCode{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", id).
		UpdateColumns(map[string]interface{}{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementCodeUses releases a usage slot (expiry/cancellation), floored at
// zero so a stray double-release cannot drive the counter negative.
func DecrementCodeUses(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.DiscountCode{}).
		Where("id = ? AND current_uses > 0", id).
		UpdateColumns(map[string]interface{}{
			"current_uses": gorm.Expr("current_uses - 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

// AccrueCodeRevenue adds a confirmed usage's amounts to the denormalized
// reporting counters.
func AccrueCodeRevenue(ctx context.Context, db *gorm.DB, id string, revenue, discountGiven float64) error {
	return db.WithContext(ctx).
		Model(&domain.DiscountCode{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_revenue":        gorm.Expr("total_revenue + ?", revenue),
			"total_discount_given": gorm.Expr("total_discount_given + ?", discountGiven),
			"updated_at":           time.Now().UTC(),
		}).Error
}

// CountCodes returns the number of codes matching the filter.
func CountCodes(ctx context.Context, db *gorm.DB, f CodeFilter) (int64, error) {
	var total int64
	err := applyCodeFilter(db.WithContext(ctx).Model(&domain.DiscountCode{}), f).
		Count(&total).Error
	return total, err
}

// ListCodes returns a page of codes matching the filter, newest first.
func ListCodes(ctx context.Context, db *gorm.DB, f CodeFilter, offset, limit int) ([]domain.DiscountCode, error) {
	var out []domain.DiscountCode
	err := applyCodeFilter(db.WithContext(ctx), f).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func applyCodeFilter(q *gorm.DB, f CodeFilter) *gorm.DB {
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.IsPublic != nil {
		q = q.Where("is_public = ?", *f.IsPublic)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?", like, like)
	}
	return q
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
