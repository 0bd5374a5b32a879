package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
)

func applyInput(code, userID string) ApplyInput {
	return ApplyInput{
		Code:       code,
		UserID:     userID,
		UserEmail:  userID + "@example.com",
		TemplateID: "tmpl-1",
		CartTotal:  100,
		Meta:       RequestMeta{IPAddress: "203.0.113.7", UserAgent: "go-test"},
	}
}

func TestApply_Success_WritesFullRecordSet(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	seedCode(t, db, "SAVE20", nil)
	svc := NewRedemptionService(db)
	ctx := context.Background()

	res, err := svc.Apply(ctx, applyInput("SAVE20", "u1"))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	if res.DiscountAmount != 20 {
		t.Errorf("discount = %v, want 20", res.DiscountAmount)
	}
	if res.Purchase.Status != domain.PurchaseStatusPending {
		t.Errorf("purchase status = %s, want PENDING", res.Purchase.Status)
	}
	if res.Purchase.FinalPrice != 80 {
		t.Errorf("final price = %v, want 80", res.Purchase.FinalPrice)
	}
	if res.Usage.Status != domain.UsageStatusReserved {
		t.Errorf("usage status = %s, want RESERVED", res.Usage.Status)
	}
	if res.Code.CurrentUses != 1 {
		t.Errorf("currentUses = %d, want 1", res.Code.CurrentUses)
	}

	// The stored counter advanced too.
	stored, err := repo.GetCodeByCode(ctx, db, "SAVE20")
	if err != nil {
		t.Fatalf("reload code: %v", err)
	}
	if stored.CurrentUses != 1 {
		t.Errorf("stored currentUses = %d, want 1", stored.CurrentUses)
	}

	// Snapshot captures the terms as redeemed.
	usage, err := repo.GetUsage(ctx, db, res.Usage.ID)
	if err != nil {
		t.Fatalf("reload usage: %v", err)
	}
	if usage.CodeSnapshot == nil || usage.CodeSnapshot.DiscountValue != 20 {
		t.Errorf("snapshot missing or wrong: %+v", usage.CodeSnapshot)
	}
	if usage.IPAddress != "203.0.113.7" {
		t.Errorf("ip = %q, want request ip", usage.IPAddress)
	}

	// Audit entry for the increment.
	logs, err := repo.ListRecentAudit(ctx, db, stored.ID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != domain.AuditActionUsageIncrement {
		t.Errorf("audit = %+v, want one USAGE_INCREMENTED entry", logs)
	}
}

func TestApply_ReservationWindow(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	seedCode(t, db, "SAVE20", nil)

	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := &RedemptionService{DB: db, ReservationTTL: 15 * time.Minute, now: func() time.Time { return fixed }}

	res, err := svc.Apply(context.Background(), applyInput("SAVE20", "u1"))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if !res.Usage.ReservedAt.Equal(fixed) {
		t.Errorf("reservedAt = %v, want %v", res.Usage.ReservedAt, fixed)
	}
	if want := fixed.Add(15 * time.Minute); !res.Usage.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", res.Usage.ExpiresAt, want)
	}
}

func TestApply_PreconditionSentinels(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	cases := []struct {
		name   string
		code   string
		mutate func(*domain.DiscountCode)
		user   string
		want   error
	}{
		{"unknown code", "NOSUCH", nil, "u1", ErrCodeNotFound},
		{"inactive", "OFF-1", func(c *domain.DiscountCode) { c.IsActive = false }, "u1", ErrCodeInactive},
		{"not yet active", "SOON-1", func(c *domain.DiscountCode) { c.ValidFrom = tp(future) }, "u1", ErrCodeNotYetActive},
		{"expired", "GONE-1", func(c *domain.DiscountCode) { c.ValidUntil = tp(past) }, "u1", ErrCodeExpired},
		{"fully used", "FULL-1", func(c *domain.DiscountCode) { c.MaxUses = ip(5); c.CurrentUses = 5 }, "u1", ErrUsageLimitReached},
		{"wrong template", "ALLOW-1", func(c *domain.DiscountCode) { c.TemplateIDs = []string{"tmpl-other"} }, "u1", ErrTemplateNotEligible},
		{"excluded template", "DENY-1", func(c *domain.DiscountCode) { c.ExcludedTemplateIDs = []string{"tmpl-1"} }, "u1", ErrTemplateNotEligible},
		{"below minimum", "MIN-1", func(c *domain.DiscountCode) { c.MinPurchaseAmount = fp(150) }, "u1", ErrBelowMinimumPurchase},
	}

	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	svc := NewRedemptionService(db)
	ctx := context.Background()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.code != "NOSUCH" {
				seedCode(t, db, tc.code, tc.mutate)
			}
			_, err := svc.Apply(ctx, applyInput(tc.code, tc.user))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Apply = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestApply_MinPurchaseCarriesAmount(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	seedCode(t, db, "BIG-SPEND", func(c *domain.DiscountCode) { c.MinPurchaseAmount = fp(250) })
	svc := NewRedemptionService(db)

	_, err := svc.Apply(context.Background(), applyInput("BIG-SPEND", "u1"))
	var minErr *MinPurchaseError
	if !errors.As(err, &minErr) {
		t.Fatalf("Apply = %v, want *MinPurchaseError", err)
	}
	if minErr.Min != 250 {
		t.Fatalf("min = %v, want 250", minErr.Min)
	}
}

func TestApply_FailureLeavesNoPartialWrites(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	dc := seedCode(t, db, "MIN-STRICT", func(c *domain.DiscountCode) { c.MinPurchaseAmount = fp(500) })
	svc := NewRedemptionService(db)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, applyInput("MIN-STRICT", "u1")); err == nil {
		t.Fatalf("expected failure")
	}

	var purchases, usages, logs int64
	db.Model(&domain.Purchase{}).Count(&purchases)
	db.Model(&domain.DiscountUsage{}).Count(&usages)
	db.Model(&domain.DiscountAuditLog{}).Count(&logs)
	if purchases != 0 || usages != 0 || logs != 0 {
		t.Fatalf("rolled-back apply left rows: purchases=%d usages=%d audit=%d", purchases, usages, logs)
	}

	stored, _ := repo.GetCodeByID(ctx, db, dc.ID)
	if stored.CurrentUses != 0 {
		t.Fatalf("currentUses = %d after rollback, want 0", stored.CurrentUses)
	}
}

func TestApply_PerUserUniqueness(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	seedCode(t, db, "ONCE-EACH", nil)
	svc := NewRedemptionService(db)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, applyInput("ONCE-EACH", "u1")); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := svc.Apply(ctx, applyInput("ONCE-EACH", "u1")); !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("second apply = %v, want ErrAlreadyUsed", err)
	}
	// A different user is unaffected.
	if _, err := svc.Apply(ctx, applyInput("ONCE-EACH", "u2")); err != nil {
		t.Fatalf("other user apply: %v", err)
	}
}

func TestApply_CeilingNeverOvershoots(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	dc := seedCode(t, db, "LIMIT-3", func(c *domain.DiscountCode) { c.MaxUses = ip(3) })
	svc := NewRedemptionService(db)
	ctx := context.Background()

	wins, rejects := 0, 0
	for i := 0; i < 10; i++ {
		_, err := svc.Apply(ctx, applyInput("LIMIT-3", "u"+string(rune('a'+i))))
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrUsageLimitReached):
			rejects++
		default:
			t.Fatalf("apply %d: unexpected error %v", i, err)
		}
	}
	if wins != 3 || rejects != 7 {
		t.Fatalf("wins=%d rejects=%d, want 3/7", wins, rejects)
	}

	stored, _ := repo.GetCodeByID(ctx, db, dc.ID)
	if stored.CurrentUses != 3 {
		t.Fatalf("currentUses = %d, want exactly 3", stored.CurrentUses)
	}
}

func TestLookupTemplate(t *testing.T) {
	db := newTestDB(t)
	seedTemplate(t, db, "tmpl-1", 100)
	if err := db.Create(&domain.Template{ID: "tmpl-off", Name: "off", Price: 50, IsActive: false}).Error; err != nil {
		t.Fatalf("seed inactive template: %v", err)
	}
	svc := NewRedemptionService(db)
	ctx := context.Background()

	if _, err := svc.LookupTemplate(ctx, "tmpl-1", 100); err != nil {
		t.Fatalf("exact price: %v", err)
	}
	// Within the one-cent tolerance.
	if _, err := svc.LookupTemplate(ctx, "tmpl-1", 100.009); err != nil {
		t.Fatalf("within tolerance: %v", err)
	}
	if _, err := svc.LookupTemplate(ctx, "tmpl-1", 99); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("drift = %v, want ErrPriceMismatch", err)
	}
	if _, err := svc.LookupTemplate(ctx, "missing", 100); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing = %v, want ErrTemplateNotFound", err)
	}
	if _, err := svc.LookupTemplate(ctx, "tmpl-off", 50); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("inactive = %v, want ErrTemplateNotFound", err)
	}
}
