package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/store"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CouponService struct {
	store  store.Store
	now    Clock
	logger *zap.Logger
}

func NewCouponService(st store.Store, now Clock, logger *zap.Logger) *CouponService {
	if now == nil {
		now = time.Now
	}
	return &CouponService{store: st, now: now, logger: logger}
}

// ValidateAndPrice previews a coupon against cartTotal without consuming it.
func (s *CouponService) ValidateAndPrice(ctx context.Context, code string, cartTotal decimal.Decimal) (models.CouponQuote, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ValidateAndPrice")
	defer span.End()

	code = models.NormalizeCouponCode(code)
	span.SetAttributes(attribute.String("coupon.code", code))
	if code == "" {
		return models.CouponQuote{}, ErrInvalidInput.WithMessage("Coupon code is required").WithFields("code")
	}
	if cartTotal.IsNegative() {
		return models.CouponQuote{}, ErrInvalidInput.WithMessage("Cart total must not be negative").WithFields("cartTotal")
	}

	coupon, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		middleware.RecordCouponEvaluation("not_found")
		return models.CouponQuote{}, asError(storeErr(err, ErrCouponNotFound))
	}

	discount, err := PriceCoupon(coupon, cartTotal, s.now())
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			middleware.RecordCouponEvaluation(strings.ToLower(se.Code))
		}
		return models.CouponQuote{}, asError(err)
	}

	middleware.RecordCouponEvaluation("applied")
	return models.CouponQuote{
		Code:           coupon.Code,
		Type:           coupon.Type,
		Value:          coupon.Value,
		DiscountAmount: discount,
	}, nil
}

func (s *CouponService) CreateCoupon(ctx context.Context, req models.CreateCouponRequest) (models.Coupon, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CreateCoupon")
	defer span.End()

	code := models.NormalizeCouponCode(req.Code)
	if len(code) < 3 {
		return models.Coupon{}, ErrInvalidInput.WithMessage("Coupon code must be at least 3 characters").WithFields("code")
	}
	if req.Type == models.CouponTypePercentage && req.Value > 100 {
		return models.Coupon{}, ErrInvalidInput.WithMessage("Percentage value must be between 0 and 100").WithFields("value")
	}

	coupon := models.Coupon{
		Code:       code,
		Type:       req.Type,
		Value:      decimal.NewFromFloat(req.Value),
		UsageLimit: req.UsageLimit,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  s.now(),
	}
	if req.MinOrder != nil {
		v := decimal.NewFromFloat(*req.MinOrder)
		coupon.MinOrder = &v
	}
	if req.MaxDiscount != nil {
		v := decimal.NewFromFloat(*req.MaxDiscount)
		coupon.MaxDiscount = &v
	}

	if err := s.store.CreateCoupon(ctx, &coupon); err != nil {
		span.RecordError(err)
		if errors.Is(err, store.ErrDuplicate) {
			return models.Coupon{}, ErrCouponExists.WithDetails(map[string]any{"code": code})
		}
		s.logger.Error("Failed to create coupon", zap.String("code", code), zap.Error(err))
		return models.Coupon{}, asError(err)
	}

	s.logger.Info("Coupon created", zap.String("coupon_id", coupon.ID), zap.String("code", code))
	return coupon, nil
}

func (s *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListCoupons")
	defer span.End()

	coupons, err := s.store.ListCoupons(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, asError(err)
	}
	return coupons, nil
}

func (s *CouponService) DeleteCoupon(ctx context.Context, id string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "DeleteCoupon")
	defer span.End()

	err := s.store.DeleteCoupon(ctx, id)
	switch {
	case err == nil:
		s.logger.Info("Coupon deleted", zap.String("coupon_id", id))
		return nil
	case errors.Is(err, store.ErrReferenced):
		return ErrCouponInUse
	default:
		span.RecordError(err)
		return asError(storeErr(err, ErrCouponNotFound))
	}
}
