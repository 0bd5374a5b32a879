// Admin discount HTTP handlers.
//
// This file exposes the operator endpoints for the discount code lifecycle:
//   - GET    /api/admin/discount              (list, paginated)
//   - POST   /api/admin/discount              (create)
//   - GET    /api/admin/discount/:id          (inspect with recent activity)
//   - PUT    /api/admin/discount/:id          (allow-listed update)
//   - PATCH  /api/admin/discount/:id          (activate / deactivate)
//   - DELETE /api/admin/discount/:id          (soft delete)
//   - POST   /api/admin/usage/:id/confirm     (confirm a reservation)
//
// All routes sit behind the X-API-Key middleware; these handlers assume the
// request is already authenticated.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/repo"
	"github.com/folioforge/go-discount-backend/internal/services"
	"github.com/folioforge/go-discount-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CodeAdminService defines the admin lifecycle operations consumed by HTTP
// handlers. Implementations should be safe for concurrent use and must honor
// the provided context for cancellation and timeouts.
type CodeAdminService interface {
	// Create inserts a new discount code.
	Create(ctx context.Context, in services.CreateCodeInput, meta services.RequestMeta) (*domain.DiscountCode, error)
	// List returns a page of codes matching the filter and the total count.
	List(ctx context.Context, f repo.CodeFilter, page, pageSize int) ([]domain.DiscountCode, int64, error)
	// Get fetches a code with its most recent usages and audit entries.
	Get(ctx context.Context, id string) (*services.CodeDetails, error)
	// Update applies an allow-listed patch.
	Update(ctx context.Context, id string, patch services.CodePatch, meta services.RequestMeta) (*domain.DiscountCode, error)
	// SetActive activates or deactivates a code.
	SetActive(ctx context.Context, id string, activate bool, reason string, meta services.RequestMeta) (*domain.DiscountCode, error)
	// SoftDelete deactivates and hides a code, refusing while usages are active.
	SoftDelete(ctx context.Context, id, reason string, meta services.RequestMeta) (*domain.DiscountCode, error)
}

// UsageConfirmer defines the reservation confirmation hook.
type UsageConfirmer interface {
	// Confirm moves a RESERVED usage to CONFIRMED and completes its purchase.
	Confirm(ctx context.Context, usageID string, meta services.RequestMeta) (*domain.DiscountUsage, error)
}

// AdminHandlers groups the operator endpoints.
type AdminHandlers struct {
	adminSvc CodeAdminService
	usageSvc UsageConfirmer
}

// NewAdmin constructs AdminHandlers bound to the given services.
func NewAdmin(adminSvc CodeAdminService, usageSvc UsageConfirmer) *AdminHandlers {
	return &AdminHandlers{adminSvc: adminSvc, usageSvc: usageSvc}
}

//
// DTOs
//

// CreateCodeRequest is the JSON payload for creating a discount code.
type CreateCodeRequest struct {
	Code                string     `json:"code" binding:"required" example:"SAVE20"`
	Description         *string    `json:"description"`
	InternalNotes       *string    `json:"internal_notes"`
	DiscountType        string     `json:"discount_type" binding:"required" example:"PERCENTAGE"`
	DiscountValue       float64    `json:"discount_value" binding:"required" example:"20"`
	MinPurchaseAmount   *float64   `json:"min_purchase_amount"`
	MaxDiscountAmount   *float64   `json:"max_discount_amount"`
	MaxUses             *int       `json:"max_uses"`
	MaxUsesPerUser      *int       `json:"max_uses_per_user"`
	ValidFrom           *time.Time `json:"valid_from"`
	ValidUntil          *time.Time `json:"valid_until"`
	IsActive            *bool      `json:"is_active"`
	IsPublic            *bool      `json:"is_public"`
	TemplateIDs         []string   `json:"template_ids"`
	ExcludedTemplateIDs []string   `json:"excluded_template_ids"`
}

// PatchCodeRequest is the JSON payload for PATCH /discount/:id.
type PatchCodeRequest struct {
	// Action is "activate" or "deactivate".
	Action string `json:"action" binding:"required" example:"deactivate"`
	// Reason is recorded on the audit entry and, for deactivation, on the row.
	Reason string `json:"reason" example:"Campaign ended"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListCodesResponse wraps a page of codes and pagination information.
type ListCodesResponse struct {
	Codes      []domain.DiscountCode `json:"codes"`
	Pagination Pagination            `json:"pagination"`
}

// CodeResponse wraps a mutated code row for update, patch, and delete
// responses.
type CodeResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Code    *domain.DiscountCode `json:"code"`
}

// DeleteBlockedResponse is returned when a soft delete is refused because
// reservations or confirmed usages still reference the code.
type DeleteBlockedResponse struct {
	RequestID    string `json:"request_id,omitempty"`
	Code         string `json:"code" example:"has_active_usages"`
	Message      string `json:"message"`
	ActiveUsages int64  `json:"active_usages"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// boolFilter parses an optional "true"/"false" query param into a *bool.
func boolFilter(c *gin.Context, name string) *bool {
	switch strings.ToLower(c.Query(name)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

//
// Handlers
//

// ListCodes godoc
// @ID          adminListCodes
// @Summary     List discount codes
// @Description Returns a page of discount codes, optionally filtered by activity, visibility, or a search term.
// @Tags        Admin
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       page       query  int     false "Page number"        minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"     minimum(1) maximum(100) default(20)
// @Param       is_active  query  bool    false "Filter by active flag"
// @Param       is_public  query  bool    false "Filter by public flag"
// @Param       search     query  string  false "Substring match on code or description"
//
// @Success     200  {object}  handlers.ListCodesResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/discount [get]
func (h *AdminHandlers) ListCodes(c *gin.Context) {
	page, pageSize := clampPagination(c)
	filter := repo.CodeFilter{
		IsActive: boolFilter(c, "is_active"),
		IsPublic: boolFilter(c, "is_public"),
		Search:   strings.TrimSpace(c.Query("search")),
	}

	items, total, err := h.adminSvc.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to list discount codes")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListCodesResponse{
		Codes: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// CreateCode godoc
// @ID          adminCreateCode
// @Summary     Create a discount code
// @Description Inserts a new discount code. Code, type, and value are immutable after creation.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       body  body  handlers.CreateCodeRequest  true  "New code definition"
//
// @Success     201  {object}  domain.DiscountCode
// @Failure     400  {object}  handlers.ErrorResponse "Invalid definition"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse "Code already exists"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/discount [post]
func (h *AdminHandlers) CreateCode(c *gin.Context) {
	var req CreateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code, discount_type and discount_value are required")
		return
	}

	normalized, err := services.SanitizeCode(req.Code)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidFormat, err.Error())
		return
	}

	code, err := h.adminSvc.Create(c.Request.Context(), services.CreateCodeInput{
		Code:                normalized,
		Description:         req.Description,
		InternalNotes:       req.InternalNotes,
		DiscountType:        req.DiscountType,
		DiscountValue:       req.DiscountValue,
		MinPurchaseAmount:   req.MinPurchaseAmount,
		MaxDiscountAmount:   req.MaxDiscountAmount,
		MaxUses:             req.MaxUses,
		MaxUsesPerUser:      req.MaxUsesPerUser,
		ValidFrom:           req.ValidFrom,
		ValidUntil:          req.ValidUntil,
		IsActive:            req.IsActive,
		IsPublic:            req.IsPublic,
		TemplateIDs:         req.TemplateIDs,
		ExcludedTemplateIDs: req.ExcludedTemplateIDs,
	}, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateCode):
			fail(c, http.StatusConflict, ErrCodeDuplicateCode, "a code with this string already exists")
		case errors.Is(err, services.ErrInvalidCodeFormat),
			errors.Is(err, services.ErrInvalidDiscountType),
			errors.Is(err, services.ErrInvalidDiscountValue):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to create discount code")
		}
		return
	}
	ok(c, http.StatusCreated, code)
}

// GetCode godoc
// @ID          adminGetCode
// @Summary     Inspect a discount code
// @Description Returns the code together with its ten most recent usages and audit entries.
// @Tags        Admin
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       id  path  string  true  "Code ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.CodeDetails
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Code not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/discount/{id} [get]
func (h *AdminHandlers) GetCode(c *gin.Context) {
	id, okID := codeID(c)
	if !okID {
		return
	}

	details, err := h.adminSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "discount code not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load discount code")
		return
	}
	ok(c, http.StatusOK, details)
}

// UpdateCode godoc
// @ID          adminUpdateCode
// @Summary     Update a discount code
// @Description Applies the mutable subset of fields. code, discount_type, and discount_value in the body are silently ignored.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       id    path  string                true  "Code ID (UUID)"  format(uuid)
// @Param       body  body  services.CodePatch    true  "Fields to update"
//
// @Success     200  {object}  handlers.CodeResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Code not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/discount/{id} [put]
func (h *AdminHandlers) UpdateCode(c *gin.Context) {
	id, okID := codeID(c)
	if !okID {
		return
	}

	var patch services.CodePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	updated, err := h.adminSvc.Update(c.Request.Context(), id, patch, requestMeta(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "discount code not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to update discount code")
		return
	}
	ok(c, http.StatusOK, CodeResponse{Success: true, Code: updated})
}

// PatchCode godoc
// @ID          adminPatchCode
// @Summary     Activate or deactivate a discount code
// @Description Toggles the active flag. Deactivation stamps who, when, and why; activation clears those fields.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       id    path  string                      true  "Code ID (UUID)"  format(uuid)
// @Param       body  body  handlers.PatchCodeRequest   true  "Action payload"
//
// @Success     200  {object}  handlers.CodeResponse
// @Failure     400  {object}  handlers.ErrorResponse "Unknown action"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Code not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/discount/{id} [patch]
func (h *AdminHandlers) PatchCode(c *gin.Context) {
	id, okID := codeID(c)
	if !okID {
		return
	}

	var req PatchCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action is required")
		return
	}

	var activate bool
	switch req.Action {
	case "activate":
		activate = true
	case "deactivate":
		activate = false
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrInvalidAction.Error())
		return
	}

	updated, err := h.adminSvc.SetActive(c.Request.Context(), id, activate, req.Reason, requestMeta(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "discount code not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to update discount code")
		return
	}
	ok(c, http.StatusOK, CodeResponse{Success: true, Code: updated})
}

// DeleteCode godoc
// @ID          adminDeleteCode
// @Summary     Soft delete a discount code
// @Description Deactivates and hides the code. Refused with the active usage count while reservations or confirmed usages exist.
// @Tags        Admin
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       id      path   string  true   "Code ID (UUID)"  format(uuid)
// @Param       reason  query  string  false  "Deletion reason for the audit trail"
//
// @Success     200  {object}  handlers.CodeResponse
// @Failure     400  {object}  handlers.DeleteBlockedResponse "Active usages exist"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Code not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/discount/{id} [delete]
func (h *AdminHandlers) DeleteCode(c *gin.Context) {
	id, okID := codeID(c)
	if !okID {
		return
	}

	deleted, err := h.adminSvc.SoftDelete(c.Request.Context(), id, c.Query("reason"), requestMeta(c))
	if err != nil {
		var activeErr *services.ActiveUsagesError
		switch {
		case errors.Is(err, services.ErrNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "discount code not found")
		case errors.As(err, &activeErr):
			c.AbortWithStatusJSON(http.StatusBadRequest, DeleteBlockedResponse{
				RequestID:    c.Writer.Header().Get("X-Request-ID"),
				Code:         ErrCodeHasActiveUsage,
				Message:      activeErr.Error(),
				ActiveUsages: activeErr.Count,
			})
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete discount code")
		}
		return
	}
	ok(c, http.StatusOK, CodeResponse{Success: true, Message: "discount code deleted", Code: deleted})
}

// ConfirmUsage godoc
// @ID          adminConfirmUsage
// @Summary     Confirm a reserved usage
// @Description Moves a RESERVED usage to CONFIRMED, completes its purchase, and accrues revenue counters.
// @Tags        Admin
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       id  path  string  true  "Usage ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.DiscountUsage
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Usage not found"
// @Failure     409  {object}  handlers.ErrorResponse "Usage not reserved"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/usage/{id}/confirm [post]
func (h *AdminHandlers) ConfirmUsage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "usage id must be a UUID")
		return
	}

	usage, err := h.usageSvc.Confirm(c.Request.Context(), id, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsageNotFound):
			fail(c, http.StatusNotFound, ErrCodeUsageNotFound, "usage not found")
		case errors.Is(err, services.ErrUsageNotReserved):
			fail(c, http.StatusConflict, ErrCodeNotReserved, "usage is not in reserved state")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to confirm usage")
		}
		return
	}
	ok(c, http.StatusOK, usage)
}

// codeID validates the :id path parameter as a UUID, failing the request
// itself when malformed.
func codeID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code id must be a UUID")
		return "", false
	}
	return id, true
}
