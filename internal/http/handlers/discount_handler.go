// Public discount HTTP handlers.
//
// This file exposes the customer-facing endpoints:
//   - POST /api/discount/apply      (redeem a code against a cart)
//   - GET  /api/discount/validate   (non-mutating preview of a code)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate service errors into the stable error-code taxonomy. The
// redemption service returns one sentinel per failed precondition; the mapping
// below deliberately collapses not-found, inactive, and not-yet-active codes
// into a single generic "invalid discount code" message so the API does not
// leak whether a guessed code exists.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/folioforge/go-discount-backend/internal/domain"
	"github.com/folioforge/go-discount-backend/internal/http/middleware"
	"github.com/folioforge/go-discount-backend/internal/services"
)

// amounts renders dollar figures in customer-facing messages with grouping
// separators ("$1,000.00" rather than "$1000.00").
var amounts = message.NewPrinter(language.English)

//
// Service contracts (context-aware)
//

// Redeemer defines the redemption operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Redeemer interface {
	// LookupTemplate resolves the purchase target and checks the cart total
	// against its listed price.
	LookupTemplate(ctx context.Context, templateID string, cartTotal float64) (*domain.Template, error)
	// Apply redeems a sanitized code against a cart atomically.
	Apply(ctx context.Context, in services.ApplyInput) (*services.ApplyResult, error)
}

// Previewer defines the non-mutating code check.
type Previewer interface {
	// Preview renders an advisory validity verdict for a raw code string.
	Preview(ctx context.Context, raw string) (*services.PreviewResult, error)
}

// DiscountHandlers groups the public discount endpoints.
type DiscountHandlers struct {
	redeemSvc  Redeemer
	previewSvc Previewer
}

// NewDiscount constructs DiscountHandlers bound to the given services.
func NewDiscount(redeemSvc Redeemer, previewSvc Previewer) *DiscountHandlers {
	return &DiscountHandlers{redeemSvc: redeemSvc, previewSvc: previewSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header (tests use
// it), and finally to the demo placeholder. It never touches c.Request if
// it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// ApplyRequest is the JSON payload for redeeming a discount code.
type ApplyRequest struct {
	// Code is the raw code string as typed by the customer.
	Code string `json:"code" binding:"required" example:"SAVE20"`
	// TemplateID identifies the product the cart is for.
	TemplateID string `json:"templateId" binding:"required" example:"tmpl-resume-pro"`
	// CartTotal is the pre-discount total the client computed.
	CartTotal float64 `json:"cartTotal" binding:"required,gt=0" example:"100"`
	// UserID optionally overrides the demo user identity.
	UserID string `json:"userId" example:"user123"`
	// UserEmail is attached to the created purchase.
	UserEmail string `json:"userEmail" example:"user@example.com"`
}

// ApplyResponse is the success envelope for /api/discount/apply.
type ApplyResponse struct {
	Success  bool             `json:"success"`
	Purchase PurchaseSummary  `json:"purchase"`
	Discount DiscountSummary  `json:"discount"`
	Template *TemplateSummary `json:"template,omitempty"`
}

// PurchaseSummary is the purchase slice of the apply response.
type PurchaseSummary struct {
	ID         string  `json:"id"`
	BasePrice  float64 `json:"basePrice"`
	FinalPrice float64 `json:"finalPrice"`
	Status     string  `json:"status"`
}

// DiscountSummary is the applied-code slice of the apply response.
type DiscountSummary struct {
	Code           string  `json:"code"`
	Description    *string `json:"description,omitempty"`
	DiscountAmount float64 `json:"discountAmount"`
	DiscountType   string  `json:"discountType"`
	DiscountValue  float64 `json:"discountValue"`
}

// TemplateSummary is the template slice of the apply response.
type TemplateSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

//
// Handlers
//

// Apply godoc
// @ID          applyDiscount
// @Summary     Apply a discount code
// @Description Validates the code against the cart and atomically reserves a usage slot, creating a pending purchase.
// @Tags        Discounts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string                 false "User ID (demo header)" example(user123)
// @Param       body       body    handlers.ApplyRequest  true  "Redemption payload"
//
// @Success     200  {object}  handlers.ApplyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation or business-rule failure"
// @Failure     404  {object}  handlers.ErrorResponse  "Template not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discount/apply [post]
func (h *DiscountHandlers) Apply(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code, templateId and a positive cartTotal are required")
		return
	}

	code, err := services.SanitizeCode(req.Code)
	if err != nil {
		middleware.ObserveRedemption("invalid_format", 0)
		fail(c, http.StatusBadRequest, ErrCodeInvalidFormat, "Invalid discount code format")
		return
	}

	ctx := c.Request.Context()

	tpl, err := h.redeemSvc.LookupTemplate(ctx, req.TemplateID, req.CartTotal)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTemplateNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Template not found")
		case errors.Is(err, services.ErrPriceMismatch):
			fail(c, http.StatusBadRequest, ErrCodePriceMismatch, "Cart total does not match the template price")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to apply discount code")
		}
		return
	}

	uid := req.UserID
	if uid == "" {
		uid = userID(c)
	}
	email := req.UserEmail
	if email == "" {
		email = uid + "@example.com"
	}

	res, err := h.redeemSvc.Apply(ctx, services.ApplyInput{
		Code:       code,
		UserID:     uid,
		UserEmail:  email,
		TemplateID: req.TemplateID,
		CartTotal:  req.CartTotal,
		Meta:       requestMeta(c),
	})
	if err != nil {
		status, ec, msg := applyError(err)
		middleware.ObserveRedemption(ec, 0)
		fail(c, status, ec, msg)
		return
	}

	middleware.ObserveRedemption("success", res.DiscountAmount)
	ok(c, http.StatusOK, ApplyResponse{
		Success: true,
		Purchase: PurchaseSummary{
			ID:         res.Purchase.ID,
			BasePrice:  res.Purchase.BasePrice,
			FinalPrice: res.Purchase.FinalPrice,
			Status:     res.Purchase.Status,
		},
		Discount: DiscountSummary{
			Code:           res.Code.Code,
			Description:    res.Code.Description,
			DiscountAmount: res.DiscountAmount,
			DiscountType:   res.Code.DiscountType,
			DiscountValue:  res.Code.DiscountValue,
		},
		Template: &TemplateSummary{ID: tpl.ID, Name: tpl.Name},
	})
}

// Validate godoc
// @ID          validateDiscount
// @Summary     Preview a discount code
// @Description Returns an advisory validity verdict without consuming a usage slot.
// @Tags        Discounts
// @Produce     json
//
// @Param       code  query  string  true  "Code to check"  example(SAVE20)
//
// @Success     200  {object}  services.PreviewResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing code parameter"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discount/validate [get]
func (h *DiscountHandlers) Validate(c *gin.Context) {
	raw := c.Query("code")
	if strings.TrimSpace(raw) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code query parameter is required")
		return
	}

	res, err := h.previewSvc.Preview(c.Request.Context(), raw)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to validate discount code")
		return
	}
	ok(c, http.StatusOK, res)
}

//
// Helpers
//

// requestMeta captures the client address and agent for audit trails.
func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// applyError maps a redemption failure to (status, code, message). Code
// lookup, inactive, and not-yet-active failures intentionally share one
// generic message.
func applyError(err error) (int, string, string) {
	var minErr *services.MinPurchaseError
	switch {
	case errors.Is(err, services.ErrCodeNotFound),
		errors.Is(err, services.ErrCodeInactive),
		errors.Is(err, services.ErrCodeNotYetActive):
		return http.StatusBadRequest, ErrCodeInvalidCode, "Invalid discount code"
	case errors.Is(err, services.ErrCodeExpired):
		return http.StatusBadRequest, ErrCodeCodeExpired, "This discount code has expired"
	case errors.Is(err, services.ErrUsageLimitReached):
		return http.StatusBadRequest, ErrCodeUsageLimitReached, "This discount code has reached its usage limit"
	case errors.Is(err, services.ErrAlreadyUsed):
		return http.StatusBadRequest, ErrCodeAlreadyUsed, "You have already used this discount code"
	case errors.Is(err, services.ErrTemplateNotEligible):
		return http.StatusBadRequest, ErrCodeTemplateNotEligible, "This discount code is not valid for this product"
	case errors.As(err, &minErr):
		return http.StatusBadRequest, ErrCodeBelowMinimumPurchase,
			amounts.Sprintf("Minimum purchase of $%.2f required", minErr.Min)
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "failed to apply discount code"
	}
}
