package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponTypeFlat       CouponType = "FLAT"
	CouponTypePercentage CouponType = "PERCENTAGE"
)

type Coupon struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"`
	Type         CouponType       `json:"type"`
	Value        decimal.Decimal  `json:"value"`
	MinOrder     *decimal.Decimal `json:"minOrder,omitempty"`
	MaxDiscount  *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit   *int             `json:"usageLimit,omitempty"`
	CurrentUsage int              `json:"currentUsage"`
	ExpiresAt    *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

type CouponUsage struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"orderId"`
	CouponID  string    `json:"couponId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeCouponCode is applied to every code before it is stored or looked up.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CreateCouponRequest struct {
	Code        string     `json:"code" binding:"required,min=3"`
	Type        CouponType `json:"type" binding:"required,oneof=FLAT PERCENTAGE"`
	Value       float64    `json:"value" binding:"gte=0"`
	MinOrder    *float64   `json:"minOrder" binding:"omitempty,gte=0"`
	MaxDiscount *float64   `json:"maxDiscount" binding:"omitempty,gt=0"`
	UsageLimit  *int       `json:"usageLimit" binding:"omitempty,gte=1"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type ApplyCouponRequest struct {
	Code      string  `json:"code" binding:"required"`
	CartTotal float64 `json:"cartTotal" binding:"gte=0"`
}

// CouponQuote is the priced preview of a coupon against a cart total.
type CouponQuote struct {
	Code           string          `json:"code"`
	Type           CouponType      `json:"type"`
	Value          decimal.Decimal `json:"value"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}
