package service

import (
	"context"
	"strings"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReturnService handles the admin side of returns and the refund lifecycle.
type ReturnService struct {
	store  store.Store
	now    Clock
	notify notifier
	logger *zap.Logger
}

func NewReturnService(st store.Store, events EventPublisher, now Clock, logger *zap.Logger) *ReturnService {
	return &ReturnService{
		store:  st,
		now:    Policy{Now: now}.withDefaults().Now,
		notify: notifier{events: events, logger: logger},
		logger: logger,
	}
}

type ReturnDecision struct {
	Return models.OrderReturn
	Refund *models.Refund
}

// UpdateReturnStatus approves or rejects a REQUESTED return. Approving a
// RETURN opens a refund for the full order total; exchanges never refund.
func (s *ReturnService) UpdateReturnStatus(ctx context.Context, returnID string, status models.ReturnStatus, adminNotes string) (ReturnDecision, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "UpdateReturnStatus")
	defer span.End()
	span.SetAttributes(attribute.String("return.id", returnID), attribute.String("return.status", string(status)))

	if status != models.ReturnStatusApproved && status != models.ReturnStatusRejected {
		return ReturnDecision{}, ErrInvalidInput.WithMessage("Status must be APPROVED or REJECTED").WithFields("status")
	}

	now := s.now()
	var (
		decision ReturnDecision
		order    models.Order
	)
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		ret, err := tx.LockReturn(ctx, returnID)
		if err != nil {
			return storeErr(err, ErrReturnNotFound)
		}
		if ret.Status != models.ReturnStatusRequested {
			return ErrInvalidTransition.
				WithMessage("Return is already %s", ret.Status).
				WithDetails(map[string]any{"from": ret.Status, "to": status})
		}

		ret.Status = status
		if notes := strings.TrimSpace(adminNotes); notes != "" {
			ret.AdminNotes = &notes
		}
		if status == models.ReturnStatusApproved {
			ret.ApprovedAt = &now
		}
		if err := tx.UpdateReturn(ctx, &ret); err != nil {
			return err
		}
		decision.Return = ret

		order, err = tx.GetOrder(ctx, ret.OrderID)
		if err != nil {
			return storeErr(err, ErrOrderNotFound)
		}
		if status != models.ReturnStatusApproved || ret.Type != models.ReturnTypeReturn {
			return nil
		}

		refund := models.Refund{
			OrderID:   ret.OrderID,
			Amount:    order.TotalAmount,
			Method:    models.RefundMethodOriginalPayment,
			Reason:    models.RefundReasonReturn,
			Status:    models.RefundStatusPending,
			CreatedAt: now,
		}
		if err := tx.CreateRefund(ctx, &refund); err != nil {
			return err
		}
		decision.Refund = &refund
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return ReturnDecision{}, asError(err)
	}

	middleware.RecordReturn(string(decision.Return.Type), string(status))
	s.logger.Info("Return status updated",
		zap.String("return_id", returnID),
		zap.String("status", string(status)),
		zap.Bool("refund_created", decision.Refund != nil),
	)
	eventType := models.EventReturnRejected
	if status == models.ReturnStatusApproved {
		eventType = models.EventReturnApproved
	}
	ev := orderEvent(eventType, order)
	ev.ReturnID = returnID
	s.notify.publish(ctx, ev)
	if decision.Refund != nil {
		middleware.RecordRefund(string(models.RefundStatusPending))
		ev := orderEvent(models.EventRefundCreated, order)
		ev.ReturnID = returnID
		ev.RefundID = decision.Refund.ID
		s.notify.publish(ctx, ev)
	}
	return decision, nil
}

// ProcessRefund marks a PENDING refund as handed to the payment processor.
func (s *ReturnService) ProcessRefund(ctx context.Context, refundID, method, transactionID string) (models.Refund, error) {
	return s.advanceRefund(ctx, "ProcessRefund", refundID, models.RefundStatusProcessing, func(r *models.Refund) error {
		if r.Status != models.RefundStatusPending {
			return invalidRefundTransition(r.Status, models.RefundStatusProcessing)
		}
		if m := strings.TrimSpace(method); m != "" {
			r.Method = m
		}
		if txn := strings.TrimSpace(transactionID); txn != "" {
			r.TransactionID = &txn
		}
		return nil
	})
}

// CompleteRefund closes a PENDING or PROCESSING refund.
func (s *ReturnService) CompleteRefund(ctx context.Context, refundID, transactionID, notes string) (models.Refund, error) {
	now := s.now()
	return s.advanceRefund(ctx, "CompleteRefund", refundID, models.RefundStatusCompleted, func(r *models.Refund) error {
		if r.Status != models.RefundStatusPending && r.Status != models.RefundStatusProcessing {
			return invalidRefundTransition(r.Status, models.RefundStatusCompleted)
		}
		if txn := strings.TrimSpace(transactionID); txn != "" {
			r.TransactionID = &txn
		}
		if n := strings.TrimSpace(notes); n != "" {
			r.Notes = &n
		}
		r.CompletedAt = &now
		return nil
	})
}

func (s *ReturnService) advanceRefund(ctx context.Context, op, refundID string, to models.RefundStatus, apply func(*models.Refund) error) (models.Refund, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("refund.id", refundID))

	var refund models.Refund
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		var err error
		refund, err = tx.LockRefund(ctx, refundID)
		if err != nil {
			return storeErr(err, ErrRefundNotFound)
		}
		if err := apply(&refund); err != nil {
			return err
		}
		refund.Status = to
		return tx.UpdateRefund(ctx, &refund)
	})
	if err != nil {
		span.RecordError(err)
		return models.Refund{}, asError(err)
	}

	middleware.RecordRefund(string(to))
	s.logger.Info("Refund updated", zap.String("refund_id", refundID), zap.String("status", string(to)))
	eventType := models.EventRefundProcessing
	if to == models.RefundStatusCompleted {
		eventType = models.EventRefundCompleted
	}
	s.notify.publish(ctx, models.OrderEvent{
		EventType:   eventType,
		OrderID:     refund.OrderID,
		TotalAmount: refund.Amount,
		RefundID:    refund.ID,
	})
	return refund, nil
}

func invalidRefundTransition(from, to models.RefundStatus) error {
	return ErrInvalidTransition.
		WithMessage("Refund is already %s", from).
		WithDetails(map[string]any{"from": from, "to": to})
}

func (s *ReturnService) ListReturns(ctx context.Context) ([]models.OrderReturn, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListReturns")
	defer span.End()

	returns, err := s.store.ListReturns(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, asError(err)
	}
	return returns, nil
}

func (s *ReturnService) ListRefunds(ctx context.Context) ([]models.Refund, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListRefunds")
	defer span.End()

	refunds, err := s.store.ListRefunds(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, asError(err)
	}
	return refunds, nil
}
