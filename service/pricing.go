package service

import (
	"fmt"
	"time"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceCoupon validates c against cartTotal at now and returns the discount.
// The preview endpoint and order creation both price through here, so a
// preview and a commit over the same total always agree.
func PriceCoupon(c models.Coupon, cartTotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return decimal.Zero, ErrCouponExpired.WithDetails(map[string]any{
			"code":      c.Code,
			"expiresAt": *c.ExpiresAt,
		})
	}
	if c.UsageLimit != nil && c.CurrentUsage >= *c.UsageLimit {
		return decimal.Zero, ErrCouponUsageExhausted.WithDetails(map[string]any{
			"code":         c.Code,
			"usageLimit":   *c.UsageLimit,
			"currentUsage": c.CurrentUsage,
		})
	}
	if c.MinOrder != nil && cartTotal.LessThan(*c.MinOrder) {
		return decimal.Zero, ErrCouponMinimumNotMet.
			WithMessage("Minimum order amount of ₹%s required", c.MinOrder.StringFixed(2)).
			WithDetails(map[string]any{
				"code":      c.Code,
				"minOrder":  *c.MinOrder,
				"cartTotal": cartTotal,
				"shortfall": c.MinOrder.Sub(cartTotal),
			})
	}

	var discount decimal.Decimal
	switch c.Type {
	case models.CouponTypeFlat:
		discount = c.Value
	case models.CouponTypePercentage:
		discount = cartTotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount != nil {
			discount = decimal.Min(discount, *c.MaxDiscount)
		}
	default:
		return decimal.Zero, fmt.Errorf("coupon %s has unknown type %q", c.Code, c.Type)
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(cartTotal) {
		discount = cartTotal
	}
	return discount.Round(2), nil
}

// ToMinorUnits converts a rupee amount into paise for the payment gateway.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
