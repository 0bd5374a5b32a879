// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the read-only Template lookup the
// redemption path depends on. Template rows are owned by the catalog side of
// the marketplace; the core never mutates them.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// GetTemplate fetches a template by id regardless of its active flag, or
// ErrNotFound.
func GetTemplate(ctx context.Context, db *gorm.DB, id string) (*domain.Template, error) {
	var t domain.Template
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
