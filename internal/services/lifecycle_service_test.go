package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
)

// reserve pushes one successful redemption through and returns its result.
func reserve(t *testing.T, svc *RedemptionService, code, user string) *ApplyResult {
	t.Helper()
	res, err := svc.Apply(context.Background(), applyInput(code, user))
	if err != nil {
		t.Fatalf("reserve %s/%s: %v", code, user, err)
	}
	return res
}

func TestConfirm_CompletesReservation(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	dc := seedCode(t, db, "SAVE20", nil)
	res := reserve(t, NewRedemptionService(db), "SAVE20", "u1")

	svc := &UsageLifecycleService{DB: db}
	ctx := context.Background()

	confirmed, err := svc.Confirm(ctx, res.Usage.ID, noMeta)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != domain.UsageStatusConfirmed {
		t.Errorf("usage status = %s, want CONFIRMED", confirmed.Status)
	}

	p, err := repo.GetPurchase(ctx, db, res.Purchase.ID)
	if err != nil {
		t.Fatalf("reload purchase: %v", err)
	}
	if p.Status != domain.PurchaseStatusCompleted {
		t.Errorf("purchase status = %s, want COMPLETED", p.Status)
	}

	// Revenue counters accrue at confirmation.
	code, _ := repo.GetCodeByID(ctx, db, dc.ID)
	if code.TotalRevenue != 80 || code.TotalDiscountGiven != 20 {
		t.Errorf("counters = (%v, %v), want (80, 20)", code.TotalRevenue, code.TotalDiscountGiven)
	}
	if code.CurrentUses != 1 {
		t.Errorf("confirm must not release the usage slot, currentUses = %d", code.CurrentUses)
	}

	logs, _ := repo.ListRecentAudit(ctx, db, dc.ID, 10)
	if len(logs) != 2 || logs[0].Action != domain.AuditActionUsageConfirmed {
		t.Errorf("audit = %+v, want USAGE_CONFIRMED newest", logs)
	}
}

func TestConfirm_SingleWinner(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	seedCode(t, db, "SAVE20", nil)
	res := reserve(t, NewRedemptionService(db), "SAVE20", "u1")

	svc := &UsageLifecycleService{DB: db}
	ctx := context.Background()

	if _, err := svc.Confirm(ctx, res.Usage.ID, noMeta); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := svc.Confirm(ctx, res.Usage.ID, noMeta); !errors.Is(err, ErrUsageNotReserved) {
		t.Fatalf("second confirm = %v, want ErrUsageNotReserved", err)
	}
}

func TestConfirm_UnknownUsage(t *testing.T) {
	db := newTestDB(t)
	svc := &UsageLifecycleService{DB: db}
	if _, err := svc.Confirm(context.Background(), "missing", noMeta); !errors.Is(err, ErrUsageNotFound) {
		t.Fatalf("Confirm = %v, want ErrUsageNotFound", err)
	}
}

func TestExpireStale_ReclaimsSlots(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	dc := seedCode(t, db, "SHORT-TTL", func(c *domain.DiscountCode) { c.MaxUses = ip(10) })

	rsvc := &RedemptionService{DB: db, ReservationTTL: time.Minute}
	stale := reserve(t, rsvc, "SHORT-TTL", "u1")
	fresh := reserve(t, rsvc, "SHORT-TTL", "u2")

	ctx := context.Background()

	// Age the first reservation past its TTL.
	if err := db.Model(&domain.DiscountUsage{}).Where("id = ?", stale.Usage.ID).
		UpdateColumn("expires_at", time.Now().UTC().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("age reservation: %v", err)
	}

	svc := &UsageLifecycleService{DB: db}
	n, err := svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	u, _ := repo.GetUsage(ctx, db, stale.Usage.ID)
	if u.Status != domain.UsageStatusExpired {
		t.Errorf("stale usage status = %s, want EXPIRED", u.Status)
	}
	p, _ := repo.GetPurchase(ctx, db, stale.Purchase.ID)
	if p.Status != domain.PurchaseStatusExpired {
		t.Errorf("stale purchase status = %s, want EXPIRED", p.Status)
	}

	// The fresh reservation is untouched and the slot was released.
	u2, _ := repo.GetUsage(ctx, db, fresh.Usage.ID)
	if u2.Status != domain.UsageStatusReserved {
		t.Errorf("fresh usage status = %s, want RESERVED", u2.Status)
	}
	code, _ := repo.GetCodeByID(ctx, db, dc.ID)
	if code.CurrentUses != 1 {
		t.Errorf("currentUses = %d after expiry, want 1", code.CurrentUses)
	}

	// The expired user may redeem again.
	if _, err := rsvc.Apply(ctx, applyInput("SHORT-TTL", "u1")); err != nil {
		t.Fatalf("re-apply after expiry: %v", err)
	}

	// Second sweep finds nothing.
	n, err = svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep expired %d, want 0", n)
	}
}

func TestExpireStale_SkipsConfirmed(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	seedCode(t, db, "KEEP-ME", nil)
	res := reserve(t, NewRedemptionService(db), "KEEP-ME", "u1")
	ctx := context.Background()

	svc := &UsageLifecycleService{DB: db}
	if _, err := svc.Confirm(ctx, res.Usage.ID, noMeta); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Even with expires_at in the past, a confirmed usage is never swept.
	if err := db.Model(&domain.DiscountUsage{}).Where("id = ?", res.Usage.ID).
		UpdateColumn("expires_at", time.Now().UTC().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("age usage: %v", err)
	}
	n, err := svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if n != 0 {
		t.Fatalf("swept %d confirmed usages, want 0", n)
	}
}
