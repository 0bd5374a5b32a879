// Package services – AdminService
//
// This file implements the admin code lifecycle: create, list, inspect,
// allow-listed update, activate/deactivate, and soft delete. Every mutation
// appends its audit entry inside the same transaction as the primary write,
// so an audit row exists if and only if the mutation committed.
//
// The admin path deliberately bypasses the redemption coordinator: it mutates
// definition fields the coordinator never touches, and relies on the store's
// row-level isolation to coexist with in-flight redemptions.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
)

// recentLimit caps the usages/audit entries returned by Get.
const recentLimit = 10

// adminActor is the performer recorded on admin-initiated audit entries.
// A real operator identity would come from the (out-of-scope) auth layer.
const adminActor = "admin"

// codePattern is the storage alphabet for code strings at creation time.
var codePattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

// AdminService implements the admin-facing discount code lifecycle.
type AdminService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Invalidate, when non-nil, is called with the code string after any
	// mutation so read-through caches can drop stale preview entries.
	Invalidate func(ctx context.Context, code string)
}

// CodeDetails is the admin inspection view: the code row plus its newest
// usages and audit entries.
type CodeDetails struct {
	Code      *domain.DiscountCode      `json:"code"`
	Usages    []domain.DiscountUsage    `json:"usages"`
	AuditLogs []domain.DiscountAuditLog `json:"audit_logs"`
}

// CreateCodeInput is the argument set for Create. Pointer fields are optional.
type CreateCodeInput struct {
	Code                string
	Description         *string
	InternalNotes       *string
	DiscountType        string
	DiscountValue       float64
	MinPurchaseAmount   *float64
	MaxDiscountAmount   *float64
	MaxUses             *int
	MaxUsesPerUser      *int
	ValidFrom           *time.Time
	ValidUntil          *time.Time
	IsActive            *bool
	IsPublic            *bool
	TemplateIDs         []string
	ExcludedTemplateIDs []string
}

// CodePatch is the allow-list of mutable fields for Update. Nil fields are
// left unchanged. Code, discount type, and discount value are deliberately
// absent: they are immutable after creation so recorded usage snapshots stay
// truthful. Unknown JSON fields in the request never reach this struct.
type CodePatch struct {
	Description         *string    `json:"description"`
	InternalNotes       *string    `json:"internal_notes"`
	MaxUses             *int       `json:"max_uses"`
	MaxUsesPerUser      *int       `json:"max_uses_per_user"`
	ValidFrom           *time.Time `json:"valid_from"`
	ValidUntil          *time.Time `json:"valid_until"`
	MinPurchaseAmount   *float64   `json:"min_purchase_amount"`
	MaxDiscountAmount   *float64   `json:"max_discount_amount"`
	TemplateIDs         []string   `json:"template_ids"`
	ExcludedTemplateIDs []string   `json:"excluded_template_ids"`
	IsActive            *bool      `json:"is_active"`
	IsPublic            *bool      `json:"is_public"`
	Reason              *string    `json:"reason"`
}

// Create validates and inserts a new discount code, and audits CREATED.
// The code string must already be uppercase [A-Z0-9-]; percentage values must
// lie in (0,100]; every value must be positive. Collisions with an existing
// code string return ErrDuplicateCode.
func (s *AdminService) Create(ctx context.Context, in CreateCodeInput, meta RequestMeta) (*domain.DiscountCode, error) {
	if !codePattern.MatchString(in.Code) {
		return nil, ErrInvalidCodeFormat
	}
	if len(in.Code) < codeMinLen || len(in.Code) > codeMaxLen {
		return nil, ErrInvalidCodeFormat
	}
	if in.DiscountType != domain.DiscountTypePercentage && in.DiscountType != domain.DiscountTypeFixed {
		return nil, ErrInvalidDiscountType
	}
	if in.DiscountValue <= 0 {
		return nil, ErrInvalidDiscountValue
	}
	if in.DiscountType == domain.DiscountTypePercentage && in.DiscountValue > 100 {
		return nil, ErrInvalidDiscountValue
	}

	code := &domain.DiscountCode{
		Code:                in.Code,
		Description:         in.Description,
		InternalNotes:       in.InternalNotes,
		DiscountType:        in.DiscountType,
		DiscountValue:       in.DiscountValue,
		MinPurchaseAmount:   in.MinPurchaseAmount,
		MaxDiscountAmount:   in.MaxDiscountAmount,
		MaxUses:             in.MaxUses,
		MaxUsesPerUser:      in.MaxUsesPerUser,
		ValidFrom:           in.ValidFrom,
		ValidUntil:          in.ValidUntil,
		IsActive:            true,
		IsPublic:            false,
		TemplateIDs:         in.TemplateIDs,
		ExcludedTemplateIDs: in.ExcludedTemplateIDs,
	}
	if in.IsActive != nil {
		code.IsActive = *in.IsActive
	}
	if in.IsPublic != nil {
		code.IsPublic = *in.IsPublic
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateCode(ctx, tx, code); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateCode
			}
			return err
		}
		return repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
			CodeID:          code.ID,
			Action:          domain.AuditActionCreated,
			PerformedBy:     adminActor,
			PerformedByType: domain.PerformerAdmin,
			IPAddress:       meta.IPAddress,
			UserAgent:       meta.UserAgent,
			ChangesAfter:    code,
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, code.Code)
	return code, nil
}

// List returns a page of codes matching the filter plus the total count.
func (s *AdminService) List(ctx context.Context, f repo.CodeFilter, page, pageSize int) ([]domain.DiscountCode, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total, err := repo.CountCodes(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DiscountCode{}, 0, nil
	}
	items, err := repo.ListCodes(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get fetches a code with its 10 most recent usages and audit entries,
// all ordered newest-first. Returns ErrNotFound when the id is unknown.
func (s *AdminService) Get(ctx context.Context, id string) (*CodeDetails, error) {
	code, err := repo.GetCodeByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	usages, err := repo.ListRecentUsages(ctx, s.DB, id, recentLimit)
	if err != nil {
		return nil, err
	}
	logs, err := repo.ListRecentAudit(ctx, s.DB, id, recentLimit)
	if err != nil {
		return nil, err
	}
	return &CodeDetails{Code: code, Usages: usages, AuditLogs: logs}, nil
}

// Update applies the allow-listed patch to a code and audits UPDATED with
// full before/after snapshots, all in one transaction. Fields outside the
// allow-list never make it into CodePatch, so a request carrying code,
// discount_type, or discount_value leaves those columns untouched.
func (s *AdminService) Update(ctx context.Context, id string, patch CodePatch, meta RequestMeta) (*domain.DiscountCode, error) {
	var updated *domain.DiscountCode
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := repo.GetCodeByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		fields := patch.columns()
		fields["updated_by"] = adminActor
		fields["updated_at"] = time.Now().UTC()
		if err := repo.UpdateCodeFields(ctx, tx, id, fields); err != nil {
			return err
		}

		after, err := repo.GetCodeByID(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = after

		reason := "Updated via admin API"
		if patch.Reason != nil && *patch.Reason != "" {
			reason = *patch.Reason
		}
		return repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
			CodeID:          id,
			Action:          domain.AuditActionUpdated,
			PerformedBy:     adminActor,
			PerformedByType: domain.PerformerAdmin,
			IPAddress:       meta.IPAddress,
			UserAgent:       meta.UserAgent,
			ChangesBefore:   before,
			ChangesAfter:    after,
			Reason:          &reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated.Code)
	return updated, nil
}

// SetActive activates or deactivates a code and audits ACTIVATED or
// DEACTIVATED. Deactivation stamps deactivatedAt/By/Reason; activation clears
// them, which also makes a soft delete reversible.
func (s *AdminService) SetActive(ctx context.Context, id string, activate bool, reason string, meta RequestMeta) (*domain.DiscountCode, error) {
	var updated *domain.DiscountCode
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetCodeByID(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		fields := map[string]interface{}{
			"is_active":  activate,
			"updated_by": adminActor,
			"updated_at": now,
		}
		action := domain.AuditActionActivated
		auditReason := reason
		if activate {
			fields["deactivated_at"] = nil
			fields["deactivated_by"] = nil
			fields["deactivation_reason"] = nil
			if auditReason == "" {
				auditReason = "Code activated via admin API"
			}
		} else {
			action = domain.AuditActionDeactivated
			fields["deactivated_at"] = now
			fields["deactivated_by"] = adminActor
			if reason != "" {
				fields["deactivation_reason"] = reason
			}
			if auditReason == "" {
				auditReason = "Code deactivated via admin API"
			}
		}
		if err := repo.UpdateCodeFields(ctx, tx, id, fields); err != nil {
			return err
		}

		after, err := repo.GetCodeByID(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = after

		return repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
			CodeID:          id,
			Action:          action,
			PerformedBy:     adminActor,
			PerformedByType: domain.PerformerAdmin,
			IPAddress:       meta.IPAddress,
			UserAgent:       meta.UserAgent,
			Reason:          &auditReason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated.Code)
	return updated, nil
}

// SoftDelete deactivates a code, clears its public flag, and audits DELETED.
// If any usage is still RESERVED or CONFIRMED the delete is refused with an
// ActiveUsagesError carrying the count — deleting must never orphan an
// in-flight reservation. The row itself persists indefinitely.
func (s *AdminService) SoftDelete(ctx context.Context, id, reason string, meta RequestMeta) (*domain.DiscountCode, error) {
	var updated *domain.DiscountCode
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetCodeByID(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		active, err := repo.CountActiveUsages(ctx, tx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return &ActiveUsagesError{Count: active}
		}

		now := time.Now().UTC()
		auditReason := reason
		if auditReason == "" {
			auditReason = "Code deleted via admin API"
		}
		fields := map[string]interface{}{
			"is_active":           false,
			"is_public":           false,
			"deactivated_at":      now,
			"deactivated_by":      adminActor,
			"deactivation_reason": auditReason,
			"updated_by":          adminActor,
			"updated_at":          now,
		}
		if err := repo.UpdateCodeFields(ctx, tx, id, fields); err != nil {
			return err
		}

		after, err := repo.GetCodeByID(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = after

		return repo.AppendAudit(ctx, tx, &domain.DiscountAuditLog{
			CodeID:          id,
			Action:          domain.AuditActionDeleted,
			PerformedBy:     adminActor,
			PerformedByType: domain.PerformerAdmin,
			IPAddress:       meta.IPAddress,
			UserAgent:       meta.UserAgent,
			Reason:          &auditReason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated.Code)
	return updated, nil
}

// columns converts the non-nil patch fields into a column map.
func (p CodePatch) columns() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.InternalNotes != nil {
		fields["internal_notes"] = *p.InternalNotes
	}
	if p.MaxUses != nil {
		fields["max_uses"] = *p.MaxUses
	}
	if p.MaxUsesPerUser != nil {
		fields["max_uses_per_user"] = *p.MaxUsesPerUser
	}
	if p.ValidFrom != nil {
		fields["valid_from"] = *p.ValidFrom
	}
	if p.ValidUntil != nil {
		fields["valid_until"] = *p.ValidUntil
	}
	if p.MinPurchaseAmount != nil {
		fields["min_purchase_amount"] = *p.MinPurchaseAmount
	}
	if p.MaxDiscountAmount != nil {
		fields["max_discount_amount"] = *p.MaxDiscountAmount
	}
	if p.TemplateIDs != nil {
		fields["template_ids"] = jsonList(p.TemplateIDs)
	}
	if p.ExcludedTemplateIDs != nil {
		fields["excluded_template_ids"] = jsonList(p.ExcludedTemplateIDs)
	}
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}
	if p.IsPublic != nil {
		fields["is_public"] = *p.IsPublic
	}
	return fields
}

// jsonList marshals a scoping list to the JSON text the column stores. The
// column map handed to Updates skips the model serializer, so the conversion
// has to happen here. Marshaling a []string cannot fail.
func jsonList(v []string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (s *AdminService) invalidate(ctx context.Context, code string) {
	if s.Invalidate != nil {
		s.Invalidate(ctx, code)
	}
}
