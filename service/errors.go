package service

import (
	"errors"
	"fmt"

	"storefront-svc/store"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindForbidden
	KindStateConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindForbidden:
		return "Forbidden"
	case KindStateConflict:
		return "StateConflict"
	case KindUpstream:
		return "UpstreamFailure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every service operation. Two errors are equal under
// errors.Is when their codes match, so the package-level sentinels can be
// compared against errors that carry extra details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) WithFields(fields ...string) *Error {
	cp := *e
	cp.Fields = fields
	return &cp
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidInput = newError(KindValidation, "INVALID_INPUT", "Invalid input")
	ErrEmptyCart    = newError(KindValidation, "EMPTY_CART", "Cart is empty")
	ErrForbidden    = newError(KindForbidden, "FORBIDDEN", "Unauthorized")

	ErrProductNotFound  = newError(KindNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	ErrCartItemNotFound = newError(KindNotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")
	ErrOrderNotFound    = newError(KindNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrPaymentNotFound  = newError(KindNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	ErrReturnNotFound   = newError(KindNotFound, "RETURN_NOT_FOUND", "Return request not found")
	ErrRefundNotFound   = newError(KindNotFound, "REFUND_NOT_FOUND", "Refund not found")

	ErrCouponNotFound       = newError(KindNotFound, "COUPON_NOT_FOUND", "Invalid coupon code")
	ErrCouponExpired        = newError(KindStateConflict, "COUPON_EXPIRED", "Coupon expired")
	ErrCouponUsageExhausted = newError(KindStateConflict, "COUPON_USAGE_EXHAUSTED", "Coupon usage limit reached")
	ErrCouponMinimumNotMet  = newError(KindStateConflict, "COUPON_MINIMUM_NOT_MET", "Minimum order amount not met")
	ErrCouponExists         = newError(KindStateConflict, "COUPON_EXISTS", "Coupon code already exists")
	ErrCouponInUse          = newError(KindStateConflict, "COUPON_IN_USE", "Coupon has already been used on orders")

	ErrAlreadyCancelled    = newError(KindStateConflict, "ALREADY_CANCELLED", "Order is already cancelled")
	ErrCancelWindowExpired = newError(KindStateConflict, "CANCEL_WINDOW_EXPIRED", "Cancellation window expired")
	ErrAlreadyShipped      = newError(KindStateConflict, "ALREADY_SHIPPED", "Cannot cancel shipped orders")
	ErrInvalidTransition   = newError(KindStateConflict, "INVALID_TRANSITION", "Status transition not allowed")
	ErrInsufficientStock   = newError(KindStateConflict, "INSUFFICIENT_STOCK", "Insufficient stock")

	ErrNotDelivered           = newError(KindStateConflict, "NOT_DELIVERED", "Order not delivered yet")
	ErrReturnAlreadyRequested = newError(KindStateConflict, "RETURN_ALREADY_REQUESTED", "Return already requested")
	ErrReturnWindowExpired    = newError(KindStateConflict, "RETURN_WINDOW_EXPIRED", "Return window expired")

	ErrPaymentNotAllowed  = newError(KindStateConflict, "PAYMENT_NOT_ALLOWED", "Order cannot be paid online")
	ErrSignatureMismatch  = newError(KindStateConflict, "SIGNATURE_MISMATCH", "Signature verification failed")
	ErrGatewayFailure     = newError(KindUpstream, "GATEWAY_FAILURE", "Payment gateway request failed")
	ErrGatewayUnavailable = newError(KindUpstream, "GATEWAY_UNAVAILABLE", "Payment gateway temporarily unavailable")

	ErrInternal = newError(KindUpstream, "INTERNAL", "Internal server error")
)

// storeErr translates the store's sentinel errors into service errors.
// notFound is used for store.ErrNotFound; anything unrecognised passes through.
func storeErr(err error, notFound *Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, store.ErrInsufficientStock):
		return ErrInsufficientStock
	}
	return err
}

// asError guarantees that callers always receive an *Error. Failures that
// did not originate from a business rule surface as INTERNAL.
func asError(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	cp := *ErrInternal
	cp.Err = err
	return &cp
}
