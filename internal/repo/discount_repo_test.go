package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func intPtr(v int) *int { return &v }

func seedDiscountCode(t *testing.T, db *gorm.DB, code string, maxUses *int, currentUses int) *domain.DiscountCode {
	t.Helper()
	dc := &domain.DiscountCode{
		ID:            "id-" + code,
		Code:          code,
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 10,
		MaxUses:       maxUses,
		CurrentUses:   currentUses,
		IsActive:      true,
	}
	if err := db.Create(dc).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}
	return dc
}

func TestCreateCode_GeneratesIDAndRejectsDuplicates(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	ctx := context.Background()

	dc := &domain.DiscountCode{
		Code:          "SAVE10",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 10,
		IsActive:      true,
	}
	if err := CreateCode(ctx, db, dc); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if dc.ID == "" {
		t.Fatalf("id not generated")
	}

	dup := &domain.DiscountCode{
		Code:          "SAVE10",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 5,
		IsActive:      true,
	}
	if err := CreateCode(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate CreateCode = %v, want ErrDuplicate", err)
	}
}

func TestGetCodeByCode_ExactMatchOnly(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	ctx := context.Background()
	seedDiscountCode(t, db, "SAVE10", nil, 0)

	if _, err := GetCodeByCode(ctx, db, "SAVE10"); err != nil {
		t.Fatalf("GetCodeByCode: %v", err)
	}
	if _, err := GetCodeByCode(ctx, db, "save10"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lowercase lookup = %v, want ErrNotFound (lookup is exact)", err)
	}
}

func TestUpdateCodeFields_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	err := UpdateCodeFields(context.Background(), db, "missing", map[string]interface{}{"is_active": false})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateCodeFields = %v, want ErrNotFound", err)
	}
}

func TestIncrementCodeUses_RespectsCeiling(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	ctx := context.Background()
	dc := seedDiscountCode(t, db, "LIMIT-2", intPtr(2), 0)

	for i := 0; i < 2; i++ {
		ok, err := IncrementCodeUses(ctx, db, dc.ID)
		if err != nil || !ok {
			t.Fatalf("increment %d: ok=%v err=%v", i, ok, err)
		}
	}
	// Ceiling hit: the guarded UPDATE refuses.
	ok, err := IncrementCodeUses(ctx, db, dc.ID)
	if err != nil {
		t.Fatalf("increment at ceiling: %v", err)
	}
	if ok {
		t.Fatalf("increment past the ceiling succeeded")
	}

	stored, _ := GetCodeByID(ctx, db, dc.ID)
	if stored.CurrentUses != 2 {
		t.Fatalf("currentUses = %d, want 2", stored.CurrentUses)
	}
}

func TestIncrementCodeUses_UnlimitedWhenNil(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	ctx := context.Background()
	dc := seedDiscountCode(t, db, "NO-CAP", nil, 0)

	for i := 0; i < 5; i++ {
		if ok, err := IncrementCodeUses(ctx, db, dc.ID); err != nil || !ok {
			t.Fatalf("increment %d: ok=%v err=%v", i, ok, err)
		}
	}
	stored, _ := GetCodeByID(ctx, db, dc.ID)
	if stored.CurrentUses != 5 {
		t.Fatalf("currentUses = %d, want 5", stored.CurrentUses)
	}
}

func TestDecrementCodeUses_FlooredAtZero(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	ctx := context.Background()
	dc := seedDiscountCode(t, db, "RELEASE", nil, 1)

	if err := DecrementCodeUses(ctx, db, dc.ID); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	// Double release must not go negative.
	if err := DecrementCodeUses(ctx, db, dc.ID); err != nil {
		t.Fatalf("second decrement: %v", err)
	}
	stored, _ := GetCodeByID(ctx, db, dc.ID)
	if stored.CurrentUses != 0 {
		t.Fatalf("currentUses = %d, want 0", stored.CurrentUses)
	}
}

func TestListCodes_FilterSearchPagination(t *testing.T) {
	db := newTestDB(t, &domain.DiscountCode{})
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"SPRING-10", "SPRING-20", "WINTER-10"} {
		dc := seedDiscountCode(t, db, code, nil, 0)
		// Distinct creation times for deterministic ordering.
		db.Model(dc).UpdateColumn("created_at", base.Add(time.Duration(i)*time.Hour))
	}

	total, err := CountCodes(ctx, db, CodeFilter{Search: "spring"})
	if err != nil {
		t.Fatalf("CountCodes: %v", err)
	}
	if total != 2 {
		t.Fatalf("search count = %d, want 2", total)
	}

	page, err := ListCodes(ctx, db, CodeFilter{}, 0, 2)
	if err != nil {
		t.Fatalf("ListCodes: %v", err)
	}
	if len(page) != 2 || page[0].Code != "WINTER-10" {
		t.Fatalf("first page = %+v, want newest first", page)
	}
	rest, err := ListCodes(ctx, db, CodeFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("ListCodes offset: %v", err)
	}
	if len(rest) != 1 || rest[0].Code != "SPRING-10" {
		t.Fatalf("second page = %+v", rest)
	}
}
