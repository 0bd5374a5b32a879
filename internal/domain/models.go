// Package domain defines the persistence models for discount codes, usages,
// purchases, and the audit trail. These types are mapped with GORM and form
// the core data layer of the discount backend.
package domain

import (
	"time"
)

// DiscountType enumerates how a code's value is interpreted.
const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

// Usage statuses. RESERVED and CONFIRMED are the non-terminal states that
// count against per-user uniqueness; CANCELLED and EXPIRED are terminal.
const (
	UsageStatusReserved  = "RESERVED"
	UsageStatusConfirmed = "CONFIRMED"
	UsageStatusCancelled = "CANCELLED"
	UsageStatusExpired   = "EXPIRED"
)

// Purchase statuses.
const (
	PurchaseStatusPending   = "PENDING"
	PurchaseStatusCompleted = "COMPLETED"
	PurchaseStatusCancelled = "CANCELLED"
	PurchaseStatusExpired   = "EXPIRED"
)

// Audit actions recorded in DiscountAuditLog.
const (
	AuditActionCreated        = "CREATED"
	AuditActionUpdated        = "UPDATED"
	AuditActionActivated      = "ACTIVATED"
	AuditActionDeactivated    = "DEACTIVATED"
	AuditActionDeleted        = "DELETED"
	AuditActionUsageIncrement = "USAGE_INCREMENTED"
	AuditActionUsageConfirmed = "USAGE_CONFIRMED"
	AuditActionUsageExpired   = "USAGE_EXPIRED"
)

// Audit performer types.
const (
	PerformerUser  = "USER"
	PerformerAdmin = "ADMIN"
)

// Template is the read-only product row the redemption path validates
// against. It is owned by the (out-of-scope) catalog; the core only looks up
// id, name, price, and the active flag.
type Template struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Price     float64   `json:"price"      gorm:"not null"`
	IsActive  bool      `json:"is_active"  gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Template.
func (Template) TableName() string { return "templates" }

// DiscountCode is a promotional code definition.
//
// Fields:
//   - Code: globally unique, uppercase alphanumeric plus hyphens.
//   - DiscountType / DiscountValue: immutable after creation; the update
//     endpoint's allow-list never includes them so snapshots embedded in
//     usages stay truthful.
//   - MaxUses / MaxUsesPerUser: nil means unlimited.
//   - ValidFrom / ValidUntil: optional validity window.
//   - TemplateIDs / ExcludedTemplateIDs: optional allow/deny lists, stored as
//     JSON arrays.
//   - CurrentUses: advanced only by the redemption transaction; never exceeds
//     MaxUses when set.
//   - TotalRevenue / TotalDiscountGiven: denormalized reporting counters,
//     accrued when a usage is confirmed.
//   - DeactivatedAt/By/Reason: soft-delete / deactivation metadata.
type DiscountCode struct {
	ID            string  `json:"id"             gorm:"type:char(36);primaryKey"`
	Code          string  `json:"code"           gorm:"type:varchar(64);uniqueIndex;not null"`
	Description   *string `json:"description,omitempty"   gorm:"type:varchar(512)"`
	InternalNotes *string `json:"internal_notes,omitempty" gorm:"type:text"`

	DiscountType  string  `json:"discount_type"  gorm:"type:varchar(16);not null;check:discount_type IN ('PERCENTAGE','FIXED')"`
	DiscountValue float64 `json:"discount_value" gorm:"not null"`

	MinPurchaseAmount *float64 `json:"min_purchase_amount,omitempty"`
	MaxDiscountAmount *float64 `json:"max_discount_amount,omitempty"`

	MaxUses        *int `json:"max_uses,omitempty"`
	MaxUsesPerUser *int `json:"max_uses_per_user,omitempty"`
	CurrentUses    int  `json:"current_uses"  gorm:"not null;default:0"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	// Booleans carry no column default so that an explicit false survives
	// GORM's zero-value handling on insert.
	IsActive bool `json:"is_active" gorm:"not null"`
	IsPublic bool `json:"is_public" gorm:"not null"`

	TemplateIDs         []string `json:"template_ids,omitempty"          gorm:"serializer:json"`
	ExcludedTemplateIDs []string `json:"excluded_template_ids,omitempty" gorm:"serializer:json"`

	TotalRevenue       float64 `json:"total_revenue"        gorm:"not null;default:0"`
	TotalDiscountGiven float64 `json:"total_discount_given" gorm:"not null;default:0"`

	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivatedBy      *string    `json:"deactivated_by,omitempty"      gorm:"type:varchar(64)"`
	DeactivationReason *string    `json:"deactivation_reason,omitempty" gorm:"type:varchar(512)"`

	UpdatedBy *string   `json:"updated_by,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DiscountCode.
func (DiscountCode) TableName() string { return "discount_codes" }

// Purchase is an order against a template. It is created PENDING inside the
// redemption transaction; actual payment capture happens elsewhere.
type Purchase struct {
	ID            string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID        string    `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	TemplateID    string    `json:"template_id" gorm:"type:varchar(64);not null;index"`
	BasePrice     float64   `json:"base_price"  gorm:"not null"`
	FinalPrice    float64   `json:"final_price" gorm:"not null"`
	Status        string    `json:"status"      gorm:"type:varchar(16);not null;default:'PENDING'"`
	Currency      string    `json:"currency"    gorm:"type:varchar(8);not null;default:'USD'"`
	CustomerEmail string    `json:"customer_email" gorm:"type:varchar(255);not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// DiscountUsage is one redemption reservation against a code. Exactly one
// usage row pairs with each discounted purchase, and at most one usage per
// (code, user) may be in a non-terminal state at a time.
//
// CodeSnapshot embeds the code's configuration as it was at redemption time,
// so later admin edits cannot rewrite the terms a customer redeemed under.
type DiscountUsage struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	CodeID     string `json:"code_id"     gorm:"type:char(36);not null;index:idx_code_user,priority:1"`
	UserID     string `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_code_user,priority:2"`
	PurchaseID string `json:"purchase_id" gorm:"type:char(36);not null;index"`

	Status     string    `json:"status"      gorm:"type:varchar(16);not null;default:'RESERVED';index"`
	ReservedAt time.Time `json:"reserved_at" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at"  gorm:"not null;index"`

	OriginalAmount float64 `json:"original_amount" gorm:"not null"`
	DiscountAmount float64 `json:"discount_amount" gorm:"not null"`
	FinalAmount    float64 `json:"final_amount"    gorm:"not null"`

	CodeSnapshot *DiscountCode `json:"code_snapshot,omitempty" gorm:"serializer:json"`

	IPAddress string `json:"ip_address" gorm:"type:varchar(64)"`
	UserAgent string `json:"user_agent" gorm:"type:varchar(512)"`

	// Fraud-scoring placeholders; populated with zero values until a scoring
	// collaborator exists.
	RiskScore   int      `json:"risk_score"             gorm:"not null;default:0"`
	RiskFactors []string `json:"risk_factors,omitempty" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code     DiscountCode `json:"-" gorm:"foreignKey:CodeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Purchase Purchase     `json:"-" gorm:"foreignKey:PurchaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for DiscountUsage.
func (DiscountUsage) TableName() string { return "discount_usages" }

// Terminal reports whether the usage can no longer transition.
func (u *DiscountUsage) Terminal() bool {
	return u.Status == UsageStatusCancelled || u.Status == UsageStatusExpired
}

// DiscountAuditLog is the append-only event trail shared by the redemption
// path (USER entries) and the admin lifecycle endpoints (ADMIN entries).
// Rows are never updated or deleted.
type DiscountAuditLog struct {
	ID              string        `json:"id"      gorm:"type:char(36);primaryKey"`
	CodeID          string        `json:"code_id" gorm:"type:char(36);not null;index"`
	Action          string        `json:"action"  gorm:"type:varchar(32);not null"`
	PerformedBy     string        `json:"performed_by"      gorm:"type:varchar(64);not null"`
	PerformedByType string        `json:"performed_by_type" gorm:"type:varchar(16);not null;check:performed_by_type IN ('USER','ADMIN')"`
	IPAddress       string        `json:"ip_address" gorm:"type:varchar(64)"`
	UserAgent       string        `json:"user_agent" gorm:"type:varchar(512)"`
	ChangesBefore   *DiscountCode `json:"changes_before,omitempty" gorm:"serializer:json"`
	ChangesAfter    *DiscountCode `json:"changes_after,omitempty"  gorm:"serializer:json"`
	Reason          *string       `json:"reason,omitempty" gorm:"type:varchar(512)"`
	CreatedAt       time.Time     `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for DiscountAuditLog.
func (DiscountAuditLog) TableName() string { return "discount_audit_logs" }
