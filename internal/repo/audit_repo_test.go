package repo

import (
	"context"
	"testing"
	"time"

	"github.com/folioforge/go-discount-backend/internal/domain"
)

func TestAppendAudit_GeneratesIDAndSnapshotsSurvive(t *testing.T) {
	db := newTestDB(t, &domain.DiscountAuditLog{})
	ctx := context.Background()

	before := &domain.DiscountCode{Code: "SAVE20", DiscountValue: 20}
	after := &domain.DiscountCode{Code: "SAVE20", DiscountValue: 20, CurrentUses: 1}
	entry := &domain.DiscountAuditLog{
		CodeID:          "code-1",
		Action:          domain.AuditActionUsageIncrement,
		PerformedBy:     "u1",
		PerformedByType: "USER",
		ChangesBefore:   before,
		ChangesAfter:    after,
	}
	if err := AppendAudit(ctx, db, entry); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("id not generated")
	}

	got, err := ListRecentAudit(ctx, db, "code-1", 10)
	if err != nil {
		t.Fatalf("ListRecentAudit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d", len(got))
	}
	// JSON snapshot columns round-trip
	if got[0].ChangesBefore == nil || got[0].ChangesBefore.CurrentUses != 0 {
		t.Fatalf("before snapshot: %+v", got[0].ChangesBefore)
	}
	if got[0].ChangesAfter == nil || got[0].ChangesAfter.CurrentUses != 1 {
		t.Fatalf("after snapshot: %+v", got[0].ChangesAfter)
	}
}

func TestListRecentAudit_NewestFirstCapped(t *testing.T) {
	db := newTestDB(t, &domain.DiscountAuditLog{})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		entry := &domain.DiscountAuditLog{
			CodeID:          "code-1",
			Action:          domain.AuditActionUpdated,
			PerformedBy:     "admin",
			PerformedByType: "ADMIN",
		}
		if err := AppendAudit(ctx, db, entry); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
		// stagger created_at so ordering is deterministic
		if err := db.Model(&domain.DiscountAuditLog{}).
			Where("id = ?", entry.ID).
			UpdateColumn("created_at", base.Add(time.Duration(i)*time.Minute)).Error; err != nil {
			t.Fatalf("stagger: %v", err)
		}
	}
	// another code's entries never leak in
	other := &domain.DiscountAuditLog{CodeID: "code-2", Action: domain.AuditActionCreated, PerformedBy: "admin", PerformedByType: "ADMIN"}
	if err := AppendAudit(ctx, db, other); err != nil {
		t.Fatalf("AppendAudit other: %v", err)
	}

	got, err := ListRecentAudit(ctx, db, "code-1", 3)
	if err != nil {
		t.Fatalf("ListRecentAudit: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatalf("not newest-first at %d", i)
		}
	}
}
