// Package services – PreviewService
//
// This file implements the public, non-mutating code check backing
// GET /api/discount/validate. It never consumes a usage slot; it only renders
// a verdict plus the public shape of the code so storefronts can show
// eligibility before checkout. Because the verdict is advisory (the
// redemption transaction re-validates everything), results may be served
// from a short-lived cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
)

// Preview verdict reasons, mirrored to clients verbatim.
const (
	PreviewReasonInvalidFormat = "INVALID_FORMAT"
	PreviewReasonNotFound      = "NOT_FOUND"
	PreviewReasonInactive      = "INACTIVE"
	PreviewReasonPrivate       = "PRIVATE"
	PreviewReasonNotYetActive  = "NOT_YET_ACTIVE"
	PreviewReasonExpired       = "EXPIRED"
	PreviewReasonFullyUsed     = "FULLY_USED"
)

// PreviewCode is the public shape of a valid code.
type PreviewCode struct {
	Code              string     `json:"code"`
	Description       *string    `json:"description,omitempty"`
	DiscountType      string     `json:"discount_type"`
	DiscountValue     float64    `json:"discount_value"`
	MinPurchaseAmount *float64   `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount *float64   `json:"max_discount_amount,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	AvailableSlots    *int       `json:"available_slots,omitempty"`
	IsLimitedQuantity bool       `json:"is_limited_quantity"`
}

// PreviewResult is the full verdict for one preview request.
type PreviewResult struct {
	Valid   bool         `json:"valid"`
	Reason  string       `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
	Code    *PreviewCode `json:"code,omitempty"`
}

// PreviewCacheStore is the read-through cache contract. Implementations must
// treat misses and backend failures identically (return ok=false) so the
// service can always fall back to the database.
type PreviewCacheStore interface {
	Get(ctx context.Context, code string) (*PreviewResult, bool)
	Set(ctx context.Context, code string, res *PreviewResult)
	Invalidate(ctx context.Context, code string)
}

// PreviewService renders advisory verdicts for discount codes.
type PreviewService struct {
	// DB is the GORM handle used for lookups.
	DB *gorm.DB
	// Cache is optional; nil disables caching entirely.
	Cache PreviewCacheStore

	// now is a test seam; nil means time.Now.
	now func() time.Time
}

// Preview sanitizes the raw input and evaluates the code's public validity:
// existence, active flag, public flag, validity window, and remaining slots.
// Verdicts (including negative ones) are cacheable; a malformed input is
// reported as an INVALID_FORMAT verdict rather than an error.
func (s *PreviewService) Preview(ctx context.Context, raw string) (*PreviewResult, error) {
	code, err := SanitizeCode(raw)
	if err != nil {
		return &PreviewResult{
			Valid:   false,
			Reason:  PreviewReasonInvalidFormat,
			Message: "Code must be 3-50 characters",
		}, nil
	}

	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, code); ok {
			return cached, nil
		}
	}

	res, err := s.evaluate(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, code, res)
	}
	return res, nil
}

func (s *PreviewService) evaluate(ctx context.Context, code string) (*PreviewResult, error) {
	dc, err := repo.GetCodeByCode(ctx, s.DB, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &PreviewResult{
				Valid:   false,
				Reason:  PreviewReasonNotFound,
				Message: "Invalid discount code",
			}, nil
		}
		return nil, err
	}

	if verdict := publicVerdict(dc, s.clock()); verdict != nil {
		return verdict, nil
	}

	var slots *int
	if dc.MaxUses != nil {
		remaining := *dc.MaxUses - dc.CurrentUses
		slots = &remaining
	}
	return &PreviewResult{
		Valid: true,
		Code: &PreviewCode{
			Code:              dc.Code,
			Description:       dc.Description,
			DiscountType:      dc.DiscountType,
			DiscountValue:     dc.DiscountValue,
			MinPurchaseAmount: dc.MinPurchaseAmount,
			MaxDiscountAmount: dc.MaxDiscountAmount,
			ValidUntil:        dc.ValidUntil,
			AvailableSlots:    slots,
			IsLimitedQuantity: dc.MaxUses != nil,
		},
	}, nil
}

// publicVerdict returns the first failing public check, or nil when the code
// is presentable. The preview additionally requires isPublic, which the
// redemption path does not: private codes still redeem, they just don't
// preview.
func publicVerdict(dc *domain.DiscountCode, now time.Time) *PreviewResult {
	if !dc.IsActive {
		return &PreviewResult{Valid: false, Reason: PreviewReasonInactive, Message: "This code is no longer active"}
	}
	if !dc.IsPublic {
		return &PreviewResult{Valid: false, Reason: PreviewReasonPrivate, Message: "This code is not available"}
	}
	if dc.ValidFrom != nil && now.Before(*dc.ValidFrom) {
		return &PreviewResult{
			Valid:   false,
			Reason:  PreviewReasonNotYetActive,
			Message: fmt.Sprintf("This code will be active on %s", dc.ValidFrom.Format("2006-01-02")),
		}
	}
	if dc.ValidUntil != nil && now.After(*dc.ValidUntil) {
		return &PreviewResult{Valid: false, Reason: PreviewReasonExpired, Message: "This code has expired"}
	}
	if dc.MaxUses != nil && dc.CurrentUses >= *dc.MaxUses {
		return &PreviewResult{Valid: false, Reason: PreviewReasonFullyUsed, Message: "This code has reached its usage limit"}
	}
	return nil
}

func (s *PreviewService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
