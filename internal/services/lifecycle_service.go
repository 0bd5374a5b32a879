// Package services – UsageLifecycleService
//
// This file implements the reservation transitions that happen after the
// redemption transaction: confirmation (the payment-capture collaborator's
// hook) and expiry of stale reservations. Each transition is one transaction
// pairing the usage update with its purchase update, counter adjustment, and
// audit entry.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
)

// sweepBatchSize caps how many stale reservations one sweep pass drains.
const sweepBatchSize = 100

// UsageLifecycleService transitions reservations out of the RESERVED state.
type UsageLifecycleService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// now is a test seam; nil means time.Now.
	now func() time.Time
}

// Confirm moves a RESERVED usage to CONFIRMED, completes its purchase, and
// accrues the code's totalRevenue/totalDiscountGiven counters, auditing
// USAGE_CONFIRMED. The status guard in the UPDATE makes concurrent confirms
// of the same usage single-winner; the loser gets ErrUsageNotReserved.
func (s *UsageLifecycleService) Confirm(ctx context.Context, usageID string, meta RequestMeta) (*domain.DiscountUsage, error) {
	var confirmed *domain.DiscountUsage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usage, err := repo.GetUsage(ctx, tx, usageID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUsageNotFound
			}
			return err
		}

		moved, err := repo.UpdateUsageStatus(ctx, tx, usage.ID, domain.UsageStatusReserved, domain.UsageStatusConfirmed)
		if err != nil {
			return err
		}
		if !moved {
			return ErrUsageNotReserved
		}

		if _, err := repo.UpdatePurchaseStatus(ctx, tx, usage.PurchaseID, domain.PurchaseStatusPending, domain.PurchaseStatusCompleted); err != nil {
			return err
		}

		if err := repo.AccrueCodeRevenue(ctx, tx, usage.CodeID, usage.FinalAmount, usage.DiscountAmount); err != nil {
			return err
		}

		if err := repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
			CodeID:          usage.CodeID,
			Action:          domain.AuditActionUsageConfirmed,
			PerformedBy:     adminActor,
			PerformedByType: domain.PerformerAdmin,
			IPAddress:       meta.IPAddress,
			UserAgent:       meta.UserAgent,
		}); err != nil {
			return err
		}

		usage.Status = domain.UsageStatusConfirmed
		confirmed = usage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// ExpireStale terminalizes RESERVED usages whose expiresAt has passed: each
// becomes EXPIRED, its purchase expires, and its usage slot is released back
// to the code's counter. One transaction per usage so a single poisoned row
// cannot wedge the whole sweep. Returns the number of reservations expired.
func (s *UsageLifecycleService) ExpireStale(ctx context.Context) (int, error) {
	stale, err := repo.ListExpiredReservations(ctx, s.DB, s.clock().UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, u := range stale {
		u := u
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			moved, err := repo.UpdateUsageStatus(ctx, tx, u.ID, domain.UsageStatusReserved, domain.UsageStatusExpired)
			if err != nil {
				return err
			}
			if !moved {
				// Confirmed or already swept since the list query.
				return nil
			}
			if _, err := repo.UpdatePurchaseStatus(ctx, tx, u.PurchaseID, domain.PurchaseStatusPending, domain.PurchaseStatusExpired); err != nil {
				return err
			}
			if err := repo.DecrementCodeUses(ctx, tx, u.CodeID); err != nil {
				return err
			}
			reason := "Reservation TTL elapsed"
			if err := repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
				CodeID:          u.CodeID,
				Action:          domain.AuditActionUsageExpired,
				PerformedBy:     "sweeper",
				PerformedByType: domain.PerformerAdmin,
				Reason:          &reason,
			}); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

func (s *UsageLifecycleService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
