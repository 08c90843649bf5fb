package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodCOD    PaymentMethod = "COD"
)

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Status          OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	CouponCode      *string         `json:"couponCode,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
	TrackingNumber  *string         `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`

	Items   []OrderItem   `json:"items"`
	Payment *Payment      `json:"payment,omitempty"`
	Returns []OrderReturn `json:"returns,omitempty"`
}

// StockCommitted reports whether stock was decremented for this order's
// items, either at placement (COD) or after a verified online payment.
func (o *Order) StockCommitted() bool {
	if o.PaymentMethod == PaymentMethodCOD {
		return true
	}
	return o.Payment != nil && o.Payment.Status == PaymentStatusCompleted
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	ShippingAddress json.RawMessage `json:"shippingAddress" binding:"required"`
	CouponCode      string          `json:"couponCode"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" binding:"omitempty,oneof=ONLINE COD"`
}

type UpdateShippingRequest struct {
	Status         OrderStatus `json:"status" binding:"required,oneof=SHIPPED DELIVERED"`
	TrackingNumber string      `json:"trackingNumber"`
	ShippedAt      *time.Time  `json:"shippedAt"`
}

type MarkDeliveredRequest struct {
	DeliveredAt *time.Time `json:"deliveredAt"`
}

type CancelOrderResponse struct {
	Message string         `json:"message"`
	Order   Order          `json:"order"`
	Refund  *RefundSummary `json:"refund"`
}

type RefundSummary struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        RefundStatus    `json:"status"`
	EstimatedDays int             `json:"estimatedDays"`
}

type OrderStats struct {
	TotalOrders    int64           `json:"totalOrders"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalProducts  int64           `json:"totalProducts"`
	PendingReturns int64           `json:"pendingReturns"`
}
