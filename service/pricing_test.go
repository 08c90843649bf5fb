package service

import (
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int { return &n }

func TestPriceCoupon_Discounts(t *testing.T) {
	tests := []struct {
		name   string
		coupon models.Coupon
		total  string
		want   string
	}{
		{
			name:   "flat",
			coupon: models.Coupon{Code: "FLAT100", Type: models.CouponTypeFlat, Value: dec("100")},
			total:  "2000",
			want:   "100",
		},
		{
			name:   "flat larger than total is clamped",
			coupon: models.Coupon{Code: "FLAT3K", Type: models.CouponTypeFlat, Value: dec("3000")},
			total:  "2000",
			want:   "2000",
		},
		{
			name:   "percentage capped by max discount",
			coupon: models.Coupon{Code: "SAVE10", Type: models.CouponTypePercentage, Value: dec("10"), MaxDiscount: decPtr("150")},
			total:  "2000",
			want:   "150",
		},
		{
			name:   "percentage under cap",
			coupon: models.Coupon{Code: "SAVE10", Type: models.CouponTypePercentage, Value: dec("10"), MaxDiscount: decPtr("150")},
			total:  "1200",
			want:   "120",
		},
		{
			name:   "percentage rounds to paise",
			coupon: models.Coupon{Code: "SAVE10", Type: models.CouponTypePercentage, Value: dec("10")},
			total:  "999.99",
			want:   "100",
		},
		{
			name:   "minimum exactly met",
			coupon: models.Coupon{Code: "MIN1K", Type: models.CouponTypeFlat, Value: dec("50"), MinOrder: decPtr("1000")},
			total:  "1000",
			want:   "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PriceCoupon(tt.coupon, dec(tt.total), baseTime)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestPriceCoupon_Expiry(t *testing.T) {
	expires := baseTime
	c := models.Coupon{Code: "EXP", Type: models.CouponTypeFlat, Value: dec("10"), ExpiresAt: &expires}

	_, err := PriceCoupon(c, dec("100"), baseTime)
	assert.NoError(t, err, "a coupon is still valid at its expiry instant")

	_, err = PriceCoupon(c, dec("100"), baseTime.Add(time.Second))
	requireCode(t, err, ErrCouponExpired)
}

func TestPriceCoupon_UsageLimit(t *testing.T) {
	c := models.Coupon{Code: "ONCE", Type: models.CouponTypeFlat, Value: dec("10"), UsageLimit: intPtr(1)}

	_, err := PriceCoupon(c, dec("100"), baseTime)
	require.NoError(t, err)

	c.CurrentUsage = 1
	_, err = PriceCoupon(c, dec("100"), baseTime)
	se := requireCode(t, err, ErrCouponUsageExhausted)
	assert.Equal(t, 1, se.Details["usageLimit"])
}

func TestPriceCoupon_MinimumNotMet(t *testing.T) {
	c := models.Coupon{Code: "BIG", Type: models.CouponTypeFlat, Value: dec("200"), MinOrder: decPtr("3000")}

	_, err := PriceCoupon(c, dec("2000"), baseTime)
	se := requireCode(t, err, ErrCouponMinimumNotMet)
	assert.Equal(t, "Minimum order amount of ₹3000.00 required", se.Message)
	shortfall, ok := se.Details["shortfall"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, shortfall.Equal(dec("1000")))
}

func TestPriceCoupon_ExpiryCheckedFirst(t *testing.T) {
	expired := baseTime.Add(-time.Hour)
	c := models.Coupon{
		Code:         "ALLBAD",
		Type:         models.CouponTypeFlat,
		Value:        dec("10"),
		ExpiresAt:    &expired,
		UsageLimit:   intPtr(1),
		CurrentUsage: 1,
		MinOrder:     decPtr("5000"),
	}

	_, err := PriceCoupon(c, dec("100"), baseTime)
	requireCode(t, err, ErrCouponExpired)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(185000), ToMinorUnits(dec("1850")))
	assert.Equal(t, int64(9999), ToMinorUnits(dec("99.99")))
	assert.Equal(t, int64(0), ToMinorUnits(decimal.Zero))
}

func TestDescribeWindow(t *testing.T) {
	assert.Equal(t, "12 hours", describeWindow(12*time.Hour))
	assert.Equal(t, "3 days", describeWindow(72*time.Hour))
	assert.Equal(t, "1 day", describeWindow(24*time.Hour))
}
