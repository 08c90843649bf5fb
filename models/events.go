package models

import "github.com/shopspring/decimal"

const (
	EventOrderCreated     = "order_created"
	EventOrderCancelled   = "order_cancelled"
	EventOrderShipped     = "order_shipped"
	EventOrderDelivered   = "order_delivered"
	EventPaymentInitiated = "payment_initiated"
	EventPaymentCompleted = "payment_completed"
	EventReturnRequested  = "return_requested"
	EventReturnApproved   = "return_approved"
	EventReturnRejected   = "return_rejected"
	EventRefundCreated    = "refund_created"
	EventRefundProcessing = "refund_processing"
	EventRefundCompleted  = "refund_completed"
)

type OrderEvent struct {
	EventType   string          `json:"event_type"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id,omitempty"`
	Status      OrderStatus     `json:"status,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ReturnID    string          `json:"return_id,omitempty"`
	RefundID    string          `json:"refund_id,omitempty"`
}
