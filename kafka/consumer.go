package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-svc/config"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func InitConsumer(cfg config.KafkaConfig, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer([]string{cfg.Broker}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StartNotifier consumes lifecycle events and emits a customer notification
// for each one until ctx is cancelled.
func StartNotifier(ctx context.Context, consumer sarama.Consumer, topic string, logger *zap.Logger) error {
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	logger.Info("Kafka notifier started", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			if err := handleMessage(message, logger); err != nil {
				logger.Error("Failed to handle message", zap.Error(err))
			}
		case err, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func handleMessage(message *sarama.ConsumerMessage, logger *zap.Logger) error {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), consumerHeaders{msg: message})

	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ProcessNotification")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("order.id", event.OrderID),
	)

	subject, body, ok := Notification(event)
	if !ok {
		logger.Debug("No notification for event", zap.String("event_type", event.EventType))
		return nil
	}

	middleware.RecordNotificationSent(event.EventType)
	logger.Info("Notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.String("subject", subject),
		zap.String("message", body),
	)
	return nil
}

// Notification renders the customer-facing message for an event.
func Notification(event models.OrderEvent) (subject, body string, ok bool) {
	amount := event.TotalAmount.StringFixed(2)
	switch event.EventType {
	case models.EventOrderCreated:
		return "Order Confirmation",
			fmt.Sprintf("Your order %s for ₹%s has been placed successfully.", event.OrderID, amount), true
	case models.EventPaymentCompleted:
		return "Payment Received",
			fmt.Sprintf("We received your payment of ₹%s for order %s.", amount, event.OrderID), true
	case models.EventOrderCancelled:
		return "Order Cancelled",
			fmt.Sprintf("Your order %s has been cancelled.", event.OrderID), true
	case models.EventOrderShipped:
		return "Order Shipped",
			fmt.Sprintf("Your order %s is on its way.", event.OrderID), true
	case models.EventOrderDelivered:
		return "Order Delivered",
			fmt.Sprintf("Your order %s has been delivered.", event.OrderID), true
	case models.EventReturnApproved:
		return "Return Approved",
			fmt.Sprintf("Your return request for order %s has been approved.", event.OrderID), true
	case models.EventReturnRejected:
		return "Return Rejected",
			fmt.Sprintf("Your return request for order %s was not approved.", event.OrderID), true
	case models.EventRefundCompleted:
		return "Refund Completed",
			fmt.Sprintf("A refund of ₹%s for order %s has been completed.", amount, event.OrderID), true
	}
	return "", "", false
}
