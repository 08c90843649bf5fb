package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReturnType string

const (
	ReturnTypeReturn   ReturnType = "RETURN"
	ReturnTypeExchange ReturnType = "EXCHANGE"
)

type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "REQUESTED"
	ReturnStatusApproved  ReturnStatus = "APPROVED"
	ReturnStatusRejected  ReturnStatus = "REJECTED"
)

type OrderReturn struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"orderId"`
	Type        ReturnType   `json:"type"`
	Reason      string       `json:"reason"`
	Status      ReturnStatus `json:"status"`
	AdminNotes  *string      `json:"adminNotes,omitempty"`
	RequestedAt time.Time    `json:"requestedAt"`
	ApprovedAt  *time.Time   `json:"approvedAt,omitempty"`
}

type RefundReason string

const (
	RefundReasonCancellation RefundReason = "CANCELLATION"
	RefundReasonReturn       RefundReason = "RETURN"
)

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "PENDING"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
)

const RefundMethodOriginalPayment = "ORIGINAL_PAYMENT"

type Refund struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	Reason        RefundReason    `json:"reason"`
	Status        RefundStatus    `json:"status"`
	TransactionID *string         `json:"transactionId,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// ReturnEligibility explains whether a return may be requested for an order.
// Only the fields relevant to Code are set.
type ReturnEligibility struct {
	Eligible      bool        `json:"eligible"`
	Code          string      `json:"code"`
	Reason        string      `json:"reason"`
	Status        OrderStatus `json:"status,omitempty"`
	ReturnID      string      `json:"returnId,omitempty"`
	DeliveredAt   *time.Time  `json:"deliveredAt,omitempty"`
	DaysRemaining int         `json:"daysRemaining,omitempty"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
}

type RequestReturnRequest struct {
	Type   ReturnType `json:"type" binding:"omitempty,oneof=RETURN EXCHANGE"`
	Reason string     `json:"reason" binding:"required"`
}

type UpdateReturnStatusRequest struct {
	Status     ReturnStatus `json:"status" binding:"required,oneof=APPROVED REJECTED"`
	AdminNotes string       `json:"adminNotes"`
}

type ProcessRefundRequest struct {
	Method        string `json:"method"`
	TransactionID string `json:"transactionId"`
}

type CompleteRefundRequest struct {
	TransactionID string `json:"transactionId"`
	Notes         string `json:"notes"`
}
