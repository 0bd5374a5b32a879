// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// DiscountAuditLog model. There are deliberately no update or delete helpers.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// AppendAudit inserts an audit log entry. The id is a randomly generated UUID
// and CreatedAt is set to UTC.
func AppendAudit(ctx context.Context, db *gorm.DB, entry *domain.DiscountAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(entry).Error
}

// ListRecentAudit returns the newest audit entries for a code, capped at limit.
func ListRecentAudit(ctx context.Context, db *gorm.DB, codeID string, limit int) ([]domain.DiscountAuditLog, error) {
	var out []domain.DiscountAuditLog
	err := db.WithContext(ctx).
		Where("code_id = ?", codeID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
