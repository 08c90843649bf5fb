package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"storefront-svc/circuitbreaker"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentGateway creates payable orders with the external processor.
// amount is in minor units; receipt is our order id.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (models.GatewayOrder, error)
}

type PaymentService struct {
	store    store.Store
	gateway  PaymentGateway
	secret   []byte
	currency string
	policy   Policy
	notify   notifier
	logger   *zap.Logger
}

func NewPaymentService(st store.Store, gateway PaymentGateway, keySecret, currency string, events EventPublisher, cache ProductCache, policy Policy, logger *zap.Logger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		store:    st,
		gateway:  gateway,
		secret:   []byte(keySecret),
		currency: currency,
		policy:   policy.withDefaults(),
		notify:   notifier{events: events, cache: cache, logger: logger},
		logger:   logger,
	}
}

// PaymentSignature is the hex HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID"
// keyed with the gateway secret, as sent by the checkout client.
func PaymentSignature(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// InitiatePayment opens a gateway order for an unpaid ONLINE order and
// records it as a PENDING payment. While that payment is pending, calling it
// again returns the same gateway order so a payment against it can still be
// verified.
func (s *PaymentService) InitiatePayment(ctx context.Context, actor models.Identity, orderID string) (models.GatewayOrder, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "InitiatePayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var (
		order    models.Order
		existing *models.GatewayOrder
	)
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		var err error
		order, err = s.lockPayableOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		existing = s.pendingGatewayOrder(order)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.GatewayOrder{}, asError(err)
	}
	if existing != nil {
		s.logger.Info("Payment already initiated",
			zap.String("order_id", orderID),
			zap.String("gateway_order_id", existing.ID),
		)
		return *existing, nil
	}

	// The gateway call stays outside any transaction so a slow gateway never
	// holds the order row lock.
	gwOrder, err := s.gateway.CreateOrder(ctx, ToMinorUnits(order.TotalAmount), s.currency, order.ID)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Payment gateway order creation failed", zap.String("order_id", orderID), zap.Error(err))
		middleware.RecordPaymentProcessed("gateway_error")
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return models.GatewayOrder{}, ErrGatewayUnavailable
		}
		cp := *ErrGatewayFailure
		cp.Err = err
		return models.GatewayOrder{}, &cp
	}

	now := s.policy.Now()
	err = s.store.InTx(ctx, func(tx store.Repository) error {
		var err error
		order, err = s.lockPayableOrder(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		// A concurrent initiation recorded its gateway order first.
		if existing = s.pendingGatewayOrder(order); existing != nil {
			return nil
		}
		payment := models.Payment{
			OrderID:        order.ID,
			GatewayOrderID: gwOrder.ID,
			Amount:         order.TotalAmount,
			Status:         models.PaymentStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreatePayment(ctx, &payment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrPaymentNotAllowed.WithMessage("Order payment is already settled")
			}
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to record payment", zap.String("order_id", orderID), zap.Error(err))
		return models.GatewayOrder{}, asError(err)
	}
	if existing != nil {
		s.logger.Warn("Discarding gateway order superseded by a concurrent initiation",
			zap.String("order_id", orderID),
			zap.String("gateway_order_id", gwOrder.ID),
		)
		return *existing, nil
	}

	middleware.RecordPaymentProcessed("initiated")
	s.logger.Info("Payment initiated",
		zap.String("order_id", orderID),
		zap.String("gateway_order_id", gwOrder.ID),
		zap.Int64("amount", ToMinorUnits(order.TotalAmount)),
	)
	s.notify.publish(ctx, orderEvent(models.EventPaymentInitiated, order))
	return gwOrder, nil
}

// lockPayableOrder locks the order and checks that actor may pay it online now.
func (s *PaymentService) lockPayableOrder(ctx context.Context, tx store.Repository, actor models.Identity, orderID string) (models.Order, error) {
	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, storeErr(err, ErrOrderNotFound)
	}
	if !actor.CanAccess(order.UserID) {
		return models.Order{}, ErrForbidden
	}
	if order.PaymentMethod != models.PaymentMethodOnline {
		return models.Order{}, ErrPaymentNotAllowed.WithMessage("Order is cash on delivery").
			WithDetails(map[string]any{"paymentMethod": order.PaymentMethod})
	}
	if order.Status != models.OrderStatusPending {
		return models.Order{}, ErrPaymentNotAllowed.WithMessage("Order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.Payment != nil && order.Payment.Status != models.PaymentStatusPending {
		return models.Order{}, ErrPaymentNotAllowed.WithMessage("Order payment is already settled").
			WithDetails(map[string]any{"paymentStatus": order.Payment.Status})
	}
	if ToMinorUnits(order.TotalAmount) <= 0 {
		return models.Order{}, ErrPaymentNotAllowed.WithMessage("Order total must be positive for online payment")
	}
	return order, nil
}

func (s *PaymentService) pendingGatewayOrder(order models.Order) *models.GatewayOrder {
	if order.Payment == nil || order.Payment.Status != models.PaymentStatusPending {
		return nil
	}
	return &models.GatewayOrder{
		ID:       order.Payment.GatewayOrderID,
		Entity:   "order",
		Amount:   ToMinorUnits(order.Payment.Amount),
		Currency: s.currency,
		Receipt:  order.ID,
		Status:   "created",
	}
}

type VerifyResult struct {
	OrderID string
	// AlreadyVerified is set when the payment had been completed by an
	// earlier callback and nothing changed.
	AlreadyVerified bool
}

// VerifyPayment checks the gateway callback signature and, when valid,
// completes the payment, moves the order to PROCESSING and commits stock
// in a single transaction.
func (s *PaymentService) VerifyPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (VerifyResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.gateway_order_id", gatewayOrderID))

	expected := PaymentSignature(s.secret, gatewayOrderID, gatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		middleware.RecordPaymentProcessed("signature_mismatch")
		s.logger.Warn("Payment signature mismatch", zap.String("gateway_order_id", gatewayOrderID))
		return VerifyResult{}, ErrSignatureMismatch
	}

	now := s.policy.Now()
	var (
		result VerifyResult
		order  models.Order
	)
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		payment, err := tx.LockPaymentByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return storeErr(err, ErrPaymentNotFound)
		}
		result.OrderID = payment.OrderID
		if payment.Status == models.PaymentStatusCompleted {
			result.AlreadyVerified = true
			return nil
		}

		order, err = tx.LockOrder(ctx, payment.OrderID)
		if err != nil {
			return storeErr(err, ErrOrderNotFound)
		}
		if order.Status != models.OrderStatusPending {
			return ErrPaymentNotAllowed.WithMessage("Order is no longer awaiting payment").
				WithDetails(map[string]any{"status": order.Status})
		}

		payment.GatewayPaymentID = &gatewayPaymentID
		payment.Signature = &signature
		payment.Status = models.PaymentStatusCompleted
		payment.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, &payment); err != nil {
			return err
		}

		order.Status = models.OrderStatusProcessing
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, &order); err != nil {
			return err
		}
		return commitStock(ctx, tx, order.Items, s.policy.StockFloorGuard)
	})
	if err != nil {
		span.RecordError(err)
		middleware.RecordPaymentProcessed("failed")
		s.logger.Error("Payment verification failed", zap.String("gateway_order_id", gatewayOrderID), zap.Error(err))
		return VerifyResult{}, asError(err)
	}

	if result.AlreadyVerified {
		s.logger.Info("Payment already verified", zap.String("order_id", result.OrderID))
		return result, nil
	}

	middleware.RecordPaymentProcessed("completed")
	s.logger.Info("Payment verified",
		zap.String("order_id", result.OrderID),
		zap.String("gateway_payment_id", gatewayPaymentID),
	)
	s.notify.invalidate(ctx, order.Items)
	s.notify.publish(ctx, orderEvent(models.EventPaymentCompleted, order))
	return result, nil
}
