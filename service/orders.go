package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
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

// RefundEstimatedDays is quoted to customers when a cancellation triggers a refund.
const RefundEstimatedDays = 7

type OrderService struct {
	store  store.Store
	policy Policy
	notify notifier
	logger *zap.Logger
}

func NewOrderService(st store.Store, events EventPublisher, cache ProductCache, policy Policy, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:  st,
		policy: policy.withDefaults(),
		notify: notifier{events: events, cache: cache, logger: logger},
		logger: logger,
	}
}

type CreateOrderInput struct {
	ShippingAddress json.RawMessage
	CouponCode      string
	PaymentMethod   models.PaymentMethod
}

// CreateOrder converts the caller's cart into an order. The cart snapshot,
// coupon consumption, cart clearing and (for COD) stock decrement commit
// together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Identity, in CreateOrderInput) (models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", actor.UserID))

	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentMethodOnline
	}
	if method != models.PaymentMethodOnline && method != models.PaymentMethodCOD {
		return models.Order{}, ErrInvalidInput.WithMessage("Unsupported payment method").WithFields("paymentMethod")
	}
	if !isJSONObject(in.ShippingAddress) {
		return models.Order{}, ErrInvalidInput.WithMessage("Shipping address must be an object").WithFields("shippingAddress")
	}

	now := s.policy.Now()
	var order models.Order
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		cart, err := tx.GetCart(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if len(cart) == 0 {
			return ErrEmptyCart
		}

		items := make([]models.OrderItem, 0, len(cart))
		subtotal := decimal.Zero
		for _, ci := range cart {
			if ci.Quantity <= 0 {
				return ErrInvalidInput.WithMessage("Cart item quantity must be positive").WithFields("quantity")
			}
			product, err := tx.GetProduct(ctx, ci.ProductID)
			if err != nil {
				return storeErr(err, ErrProductNotFound)
			}
			subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(ci.Quantity))))
			items = append(items, models.OrderItem{
				ProductID: ci.ProductID,
				Quantity:  ci.Quantity,
				Price:     product.Price,
			})
		}

		discount := decimal.Zero
		var coupon *models.Coupon
		if code := models.NormalizeCouponCode(in.CouponCode); code != "" {
			c, err := tx.LockCouponByCode(ctx, code)
			if err != nil {
				return storeErr(err, ErrCouponNotFound)
			}
			discount, err = PriceCoupon(c, subtotal, now)
			if err != nil {
				return err
			}
			coupon = &c
		}

		order = models.Order{
			UserID:          actor.UserID,
			Status:          models.OrderStatusPending,
			Subtotal:        subtotal,
			DiscountAmount:  discount,
			TotalAmount:     decimal.Max(subtotal.Sub(discount), decimal.Zero),
			PaymentMethod:   method,
			ShippingAddress: in.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           items,
		}
		if coupon != nil {
			order.CouponCode = &coupon.Code
		}
		if method == models.PaymentMethodCOD {
			order.Status = models.OrderStatusProcessing
		}

		if err := tx.CreateOrder(ctx, &order); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, actor.UserID); err != nil {
			return err
		}

		if coupon != nil {
			usage := models.CouponUsage{
				OrderID:   order.ID,
				CouponID:  coupon.ID,
				UserID:    actor.UserID,
				CreatedAt: now,
			}
			if err := tx.CreateCouponUsage(ctx, &usage); err != nil {
				return err
			}
			if err := tx.IncrementCouponUsage(ctx, coupon.ID); err != nil {
				return err
			}
		}

		if method == models.PaymentMethodCOD {
			return commitStock(ctx, tx, order.Items, s.policy.StockFloorGuard)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Order creation failed", zap.String("user_id", actor.UserID), zap.Error(err))
		return models.Order{}, asError(err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	middleware.RecordOrderCreated(string(method))
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", actor.UserID),
		zap.String("payment_method", string(method)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	if method == models.PaymentMethodCOD {
		s.notify.invalidate(ctx, order.Items)
	}
	s.notify.publish(ctx, orderEvent(models.EventOrderCreated, order))
	return order, nil
}

// isJSONObject reports whether raw holds a JSON object. A JSON null decodes
// into a nil map and is rejected.
func isJSONObject(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	return json.Unmarshal(raw, &fields) == nil && fields != nil
}

// CancelResult is the outcome of a successful cancellation. Refund is set
// only when a completed payment has to be returned.
type CancelResult struct {
	Order  models.Order
	Refund *models.Refund
}

func (s *OrderService) CancelOrder(ctx context.Context, actor models.Identity, orderID string) (CancelResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	now := s.policy.Now()
	var (
		result    CancelResult
		restocked bool
	)
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return storeErr(err, ErrOrderNotFound)
		}
		if !actor.CanAccess(order.UserID) {
			return ErrForbidden
		}
		if order.Status == models.OrderStatusCancelled {
			return ErrAlreadyCancelled
		}
		if now.Sub(order.CreatedAt) >= s.policy.CancelWindow {
			return ErrCancelWindowExpired.
				WithMessage("Cancellation window expired (%s)", describeWindow(s.policy.CancelWindow)).
				WithDetails(map[string]any{
					"createdAt":   order.CreatedAt,
					"windowHours": s.policy.CancelWindow.Hours(),
				})
		}
		if order.Status == models.OrderStatusShipped || order.Status == models.OrderStatusDelivered {
			return ErrAlreadyShipped.WithDetails(map[string]any{"status": order.Status})
		}

		restocked = order.StockCommitted()
		order.Status = models.OrderStatusCancelled
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, &order); err != nil {
			return err
		}

		if restocked {
			for _, it := range order.Items {
				if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity, false); err != nil {
					return storeErr(err, ErrProductNotFound)
				}
			}
		}

		if order.Payment != nil && order.Payment.Status == models.PaymentStatusCompleted {
			refund := models.Refund{
				OrderID:   order.ID,
				Amount:    order.TotalAmount,
				Method:    models.RefundMethodOriginalPayment,
				Reason:    models.RefundReasonCancellation,
				Status:    models.RefundStatusPending,
				CreatedAt: now,
			}
			if err := tx.CreateRefund(ctx, &refund); err != nil {
				return err
			}
			result.Refund = &refund
		}
		result.Order = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return CancelResult{}, asError(err)
	}

	middleware.RecordOrderCancelled()
	s.logger.Info("Order cancelled",
		zap.String("order_id", orderID),
		zap.String("actor_id", actor.UserID),
		zap.Bool("restocked", restocked),
		zap.Bool("refund_created", result.Refund != nil),
	)
	if restocked {
		s.notify.invalidate(ctx, result.Order.Items)
	}
	s.notify.publish(ctx, orderEvent(models.EventOrderCancelled, result.Order))
	if result.Refund != nil {
		middleware.RecordRefund(string(models.RefundStatusPending))
		ev := orderEvent(models.EventRefundCreated, result.Order)
		ev.RefundID = result.Refund.ID
		s.notify.publish(ctx, ev)
	}
	return result, nil
}

// CheckReturnEligibility is a read-only report on whether the owner could
// request a return right now.
func (s *OrderService) CheckReturnEligibility(ctx context.Context, actor models.Identity, orderID string) (models.ReturnEligibility, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CheckReturnEligibility")
	defer span.End()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return models.ReturnEligibility{}, asError(storeErr(err, ErrOrderNotFound))
	}
	if actor.UserID != order.UserID {
		return models.ReturnEligibility{}, ErrForbidden
	}
	return s.returnEligibility(order, s.policy.Now()), nil
}

func (s *OrderService) returnEligibility(o models.Order, now time.Time) models.ReturnEligibility {
	window := describeWindow(s.policy.ReturnWindow)
	if o.Status != models.OrderStatusDelivered || o.DeliveredAt == nil {
		return models.ReturnEligibility{
			Code:   ErrNotDelivered.Code,
			Reason: ErrNotDelivered.Message,
			Status: o.Status,
		}
	}
	if len(o.Returns) > 0 {
		return models.ReturnEligibility{
			Code:     ErrReturnAlreadyRequested.Code,
			Reason:   ErrReturnAlreadyRequested.Message,
			ReturnID: o.Returns[0].ID,
		}
	}

	age := now.Sub(*o.DeliveredAt)
	if age > s.policy.ReturnWindow {
		return models.ReturnEligibility{
			Code:        ErrReturnWindowExpired.Code,
			Reason:      "Return window expired (" + window + ")",
			DeliveredAt: o.DeliveredAt,
		}
	}

	remaining := s.policy.ReturnWindow - age
	expires := o.DeliveredAt.Add(s.policy.ReturnWindow)
	return models.ReturnEligibility{
		Eligible:      true,
		Code:          "ELIGIBLE",
		Reason:        "Within " + window + " window",
		DaysRemaining: int(math.Ceil(remaining.Hours() / 24)),
		ExpiresAt:     &expires,
	}
}

type ReturnInput struct {
	Type   models.ReturnType
	Reason string
}

// RequestReturn files a return against a delivered order. It applies the
// same checks as CheckReturnEligibility under a row lock.
func (s *OrderService) RequestReturn(ctx context.Context, actor models.Identity, orderID string, in ReturnInput) (models.OrderReturn, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "RequestReturn")
	defer span.End()

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return models.OrderReturn{}, ErrInvalidInput.WithMessage("Return reason is required").WithFields("reason")
	}
	typ := in.Type
	if typ == "" {
		typ = models.ReturnTypeReturn
	}
	if typ != models.ReturnTypeReturn && typ != models.ReturnTypeExchange {
		return models.OrderReturn{}, ErrInvalidInput.WithMessage("Return type must be RETURN or EXCHANGE").WithFields("type")
	}

	now := s.policy.Now()
	var (
		ret   models.OrderReturn
		order models.Order
	)
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return storeErr(err, ErrOrderNotFound)
		}
		if actor.UserID != order.UserID {
			return ErrForbidden
		}

		elig := s.returnEligibility(order, now)
		switch elig.Code {
		case ErrNotDelivered.Code:
			return ErrNotDelivered.WithDetails(map[string]any{"status": order.Status})
		case ErrReturnAlreadyRequested.Code:
			return ErrReturnAlreadyRequested.WithDetails(map[string]any{"returnId": elig.ReturnID})
		case ErrReturnWindowExpired.Code:
			return ErrReturnWindowExpired.WithMessage("%s", elig.Reason).
				WithDetails(map[string]any{"deliveredAt": elig.DeliveredAt})
		}

		ret = models.OrderReturn{
			OrderID:     order.ID,
			Type:        typ,
			Reason:      reason,
			Status:      models.ReturnStatusRequested,
			RequestedAt: now,
		}
		if err := tx.CreateReturn(ctx, &ret); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrReturnAlreadyRequested
			}
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.OrderReturn{}, asError(err)
	}

	middleware.RecordReturn(string(typ), string(models.ReturnStatusRequested))
	s.logger.Info("Return requested",
		zap.String("order_id", orderID),
		zap.String("return_id", ret.ID),
		zap.String("type", string(typ)),
	)
	ev := orderEvent(models.EventReturnRequested, order)
	ev.ReturnID = ret.ID
	s.notify.publish(ctx, ev)
	return ret, nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor models.Identity) ([]models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListOrders")
	defer span.End()

	orders, err := s.store.ListOrdersByUser(ctx, actor.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, asError(err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor models.Identity, orderID string) (models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "GetOrder")
	defer span.End()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return models.Order{}, asError(storeErr(err, ErrOrderNotFound))
	}
	if !actor.CanAccess(order.UserID) {
		return models.Order{}, ErrForbidden
	}
	return order, nil
}

// ListAllOrders returns the most recent orders across all customers.
func (s *OrderService) ListAllOrders(ctx context.Context, limit int) ([]models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListAllOrders")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	orders, err := s.store.ListOrders(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return nil, asError(err)
	}
	return orders, nil
}

type ShippingUpdate struct {
	Status         models.OrderStatus
	TrackingNumber string
	ShippedAt      *time.Time
}

// UpdateShipping moves an order forward along PROCESSING → SHIPPED → DELIVERED.
func (s *OrderService) UpdateShipping(ctx context.Context, orderID string, in ShippingUpdate) (models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "UpdateShipping")
	defer span.End()

	switch in.Status {
	case models.OrderStatusShipped:
		tracking := strings.TrimSpace(in.TrackingNumber)
		if tracking == "" {
			return models.Order{}, ErrInvalidInput.WithMessage("Tracking number is required").WithFields("trackingNumber")
		}
		return s.transition(ctx, orderID, models.OrderStatusProcessing, models.OrderStatusShipped, func(o *models.Order, now time.Time) {
			shippedAt := now
			if in.ShippedAt != nil {
				shippedAt = *in.ShippedAt
			}
			o.TrackingNumber = &tracking
			o.ShippedAt = &shippedAt
		})
	case models.OrderStatusDelivered:
		return s.MarkDelivered(ctx, orderID, nil)
	default:
		return models.Order{}, ErrInvalidInput.WithMessage("Status must be SHIPPED or DELIVERED").WithFields("status")
	}
}

// MarkDelivered records delivery. deliveredAt defaults to now and starts
// the return window.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string, deliveredAt *time.Time) (models.Order, error) {
	if deliveredAt != nil && deliveredAt.After(s.policy.Now()) {
		return models.Order{}, ErrInvalidInput.WithMessage("Delivery time cannot be in the future").WithFields("deliveredAt")
	}
	return s.transition(ctx, orderID, models.OrderStatusShipped, models.OrderStatusDelivered, func(o *models.Order, now time.Time) {
		at := now
		if deliveredAt != nil {
			at = *deliveredAt
		}
		o.DeliveredAt = &at
	})
}

func (s *OrderService) transition(ctx context.Context, orderID string, from, to models.OrderStatus, apply func(*models.Order, time.Time)) (models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "TransitionOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(to)),
	)

	now := s.policy.Now()
	var order models.Order
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return storeErr(err, ErrOrderNotFound)
		}
		if order.Status != from {
			return ErrInvalidTransition.
				WithMessage("Cannot move order from %s to %s", order.Status, to).
				WithDetails(map[string]any{"from": order.Status, "to": to})
		}
		order.Status = to
		order.UpdatedAt = now
		apply(&order, now)
		return tx.UpdateOrder(ctx, &order)
	})
	if err != nil {
		span.RecordError(err)
		return models.Order{}, asError(err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	event := models.EventOrderShipped
	if to == models.OrderStatusDelivered {
		event = models.EventOrderDelivered
	}
	s.notify.publish(ctx, orderEvent(event, order))
	return order, nil
}

// commitStock decrements stock for every line. With guard set, a line that
// would take stock negative aborts the surrounding transaction.
func commitStock(ctx context.Context, tx store.Repository, items []models.OrderItem, guard bool) error {
	for _, it := range items {
		if err := tx.AdjustStock(ctx, it.ProductID, -it.Quantity, guard); err != nil {
			err = storeErr(err, ErrProductNotFound)
			if errors.Is(err, ErrInsufficientStock) {
				return ErrInsufficientStock.WithDetails(map[string]any{
					"productId": it.ProductID,
					"quantity":  it.Quantity,
				})
			}
			return err
		}
	}
	return nil
}

func orderEvent(eventType string, o models.Order) models.OrderEvent {
	return models.OrderEvent{
		EventType:   eventType,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
	}
}
