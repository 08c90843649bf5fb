package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)

type Payment struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"orderId"`
	GatewayOrderID   string          `json:"gatewayOrderId"`
	GatewayPaymentID *string         `json:"gatewayPaymentId,omitempty"`
	Signature        *string         `json:"-"`
	Amount           decimal.Decimal `json:"amount"`
	Status           PaymentStatus   `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// GatewayOrder is the payable order handle returned by the payment gateway.
// Amount is in minor units (paise).
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type CreatePaymentOrderRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId" binding:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

type VerifyPaymentResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId"`
}
