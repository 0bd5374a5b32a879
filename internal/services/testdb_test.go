package services

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

// newTestDB opens a unique in-memory database per test and migrates the full
// schema the services operate on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Template{},
		&domain.DiscountCode{},
		&domain.Purchase{},
		&domain.DiscountUsage{},
		&domain.DiscountAuditLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedTemplate inserts an active template priced at price.
func seedTemplate(t *testing.T, db *gorm.DB, id string, price float64) *domain.Template {
	t.Helper()
	tpl := &domain.Template{ID: id, Name: "Template " + id, Price: price, IsActive: true}
	if err := db.Create(tpl).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return tpl
}

// seedCode inserts a discount code, applying mutate before the insert.
func seedCode(t *testing.T, db *gorm.DB, code string, mutate func(*domain.DiscountCode)) *domain.DiscountCode {
	t.Helper()
	dc := &domain.DiscountCode{
		ID:            "id-" + code,
		Code:          code,
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 20,
		IsActive:      true,
		IsPublic:      true,
	}
	if mutate != nil {
		mutate(dc)
	}
	if err := db.Create(dc).Error; err != nil {
		t.Fatalf("seed code %s: %v", code, err)
	}
	return dc
}

func ip(v int) *int { return &v }

func tp(v time.Time) *time.Time { return &v }

func sp(v string) *string { return &v }
