// Package services – RedemptionService
//
// This file implements the redemption transaction coordinator: the ordered
// precondition chain and write set that turns a discount code plus a cart
// into a PENDING purchase, a RESERVED usage, an incremented usage counter,
// and an audit entry — atomically, under serializable isolation, inside a
// bounded time budget.
//
// Service-level errors (ErrCodeNotFound, ErrCodeExpired, ErrAlreadyUsed, …)
// are returned for predictable failures so handlers can map them to HTTP
// results consistently; any of them rolls the whole transaction back.
package services

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
)

const (
	// defaultReservationTTL is how long a RESERVED usage holds its slot
	// before the sweeper may reclaim it.
	defaultReservationTTL = 15 * time.Minute

	// defaultTxTimeout bounds the redemption transaction. A timeout surfaces
	// as a rolled-back transaction and a generic internal error upstream.
	defaultTxTimeout = 10 * time.Second

	// priceTolerance is the allowed drift between the submitted cart total
	// and the template's listed price.
	priceTolerance = 0.01
)

// RequestMeta carries per-request metadata persisted on usages and audit rows.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ApplyInput is the full argument set for one redemption attempt. Code must
// already be sanitized via SanitizeCode.
type ApplyInput struct {
	Code       string
	UserID     string
	UserEmail  string
	TemplateID string
	CartTotal  float64
	Meta       RequestMeta
}

// ApplyResult bundles everything the apply endpoint echoes back on success.
type ApplyResult struct {
	Purchase       *domain.Purchase
	Usage          *domain.DiscountUsage
	Code           *domain.DiscountCode
	Template       *domain.Template
	DiscountAmount float64
}

// RedemptionService coordinates the atomic apply-discount-code transaction.
// Concurrency correctness is delegated to the store's serializable isolation;
// the service holds no locks and no mutable state of its own.
type RedemptionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// ReservationTTL is the logical TTL stamped on new usages. Zero means
	// defaultReservationTTL.
	ReservationTTL time.Duration
	// TxTimeout bounds the transaction. Zero means defaultTxTimeout.
	TxTimeout time.Duration

	// now is a test seam; nil means time.Now.
	now func() time.Time
}

// NewRedemptionService constructs a RedemptionService with default budgets.
func NewRedemptionService(db *gorm.DB) *RedemptionService {
	return &RedemptionService{DB: db}
}

// LookupTemplate resolves the template the cart is for and verifies the
// submitted total against its listed price. Runs before the transaction:
// a missing or inactive template yields ErrTemplateNotFound, a drift beyond
// one cent yields ErrPriceMismatch.
func (s *RedemptionService) LookupTemplate(ctx context.Context, templateID string, cartTotal float64) (*domain.Template, error) {
	t, err := repo.GetTemplate(ctx, s.DB, templateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTemplateNotFound
	}
	if math.Abs(t.Price-cartTotal) > priceTolerance {
		return nil, ErrPriceMismatch
	}
	return t, nil
}

// Apply validates and redeems a code against a cart in one serializable
// transaction, in this order, each step failing fast with its own error kind:
//
//  1. exact-match code lookup             → ErrCodeNotFound
//  2. active flag                         → ErrCodeInactive
//  3. validity window                     → ErrCodeNotYetActive / ErrCodeExpired
//  4. usage ceiling                       → ErrUsageLimitReached
//  5. per-user RESERVED/CONFIRMED usage   → ErrAlreadyUsed
//  6. template allow/deny lists           → ErrTemplateNotEligible
//  7. minimum purchase                    → MinPurchaseError
//
// On success it creates the PENDING purchase, increments current_uses through
// the ceiling-guarded UPDATE, creates the RESERVED usage with an immutable
// snapshot of the code, and appends the USAGE_INCREMENTED audit entry. Any
// error rolls everything back; no partial writes survive.
func (s *RedemptionService) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	tr := otel.Tracer("services/RedemptionService")
	ctx, span := tr.Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("discount.code", in.Code),
			attribute.String("template.id", in.TemplateID),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout())
	defer cancel()

	var out ApplyResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := repo.GetCodeByCode(ctx, tx, in.Code)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrCodeNotFound
			}
			return err
		}

		if !code.IsActive {
			return ErrCodeInactive
		}

		now := s.clock()
		if code.ValidFrom != nil && now.Before(*code.ValidFrom) {
			return ErrCodeNotYetActive
		}
		if code.ValidUntil != nil && now.After(*code.ValidUntil) {
			return ErrCodeExpired
		}

		if code.MaxUses != nil && code.CurrentUses >= *code.MaxUses {
			return ErrUsageLimitReached
		}

		used, err := repo.HasActiveUsage(ctx, tx, code.ID, in.UserID)
		if err != nil {
			return err
		}
		if used {
			return ErrAlreadyUsed
		}

		if len(code.TemplateIDs) > 0 && !contains(code.TemplateIDs, in.TemplateID) {
			return ErrTemplateNotEligible
		}
		if contains(code.ExcludedTemplateIDs, in.TemplateID) {
			return ErrTemplateNotEligible
		}

		if code.MinPurchaseAmount != nil && in.CartTotal < *code.MinPurchaseAmount {
			return &MinPurchaseError{Min: *code.MinPurchaseAmount}
		}

		calc := CalculateDiscount(code.DiscountType, code.DiscountValue, code.MaxDiscountAmount, in.CartTotal)

		purchase := &domain.Purchase{
			UserID:        in.UserID,
			TemplateID:    in.TemplateID,
			BasePrice:     in.CartTotal,
			FinalPrice:    calc.FinalTotal,
			Status:        domain.PurchaseStatusPending,
			Currency:      "USD",
			CustomerEmail: in.UserEmail,
		}
		if err := repo.CreatePurchase(ctx, tx, purchase); err != nil {
			return err
		}

		incremented, err := repo.IncrementCodeUses(ctx, tx, code.ID)
		if err != nil {
			return err
		}
		if !incremented {
			// A concurrent redemption took the last slot between our read and
			// the guarded increment.
			return ErrUsageLimitReached
		}

		snapshot := *code
		usage := &domain.DiscountUsage{
			CodeID:         code.ID,
			UserID:         in.UserID,
			PurchaseID:     purchase.ID,
			Status:         domain.UsageStatusReserved,
			ReservedAt:     now.UTC(),
			ExpiresAt:      now.UTC().Add(s.reservationTTL()),
			OriginalAmount: in.CartTotal,
			DiscountAmount: calc.DiscountAmount,
			FinalAmount:    calc.FinalTotal,
			CodeSnapshot:   &snapshot,
			IPAddress:      in.Meta.IPAddress,
			UserAgent:      in.Meta.UserAgent,
			RiskScore:      0,
			RiskFactors:    []string{},
		}
		if err := repo.CreateUsage(ctx, tx, usage); err != nil {
			return err
		}

		if err := repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
			CodeID:          code.ID,
			Action:          domain.AuditActionUsageIncrement,
			PerformedBy:     in.UserID,
			PerformedByType: domain.PerformerUser,
			IPAddress:       in.Meta.IPAddress,
			UserAgent:       in.Meta.UserAgent,
		}); err != nil {
			return err
		}

		code.CurrentUses++
		out = ApplyResult{
			Purchase:       purchase,
			Usage:          usage,
			Code:           code,
			DiscountAmount: calc.DiscountAmount,
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedemptionService) reservationTTL() time.Duration {
	if s.ReservationTTL > 0 {
		return s.ReservationTTL
	}
	return defaultReservationTTL
}

func (s *RedemptionService) txTimeout() time.Duration {
	if s.TxTimeout > 0 {
		return s.TxTimeout
	}
	return defaultTxTimeout
}

func (s *RedemptionService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// contains reports membership of v in list.
func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
