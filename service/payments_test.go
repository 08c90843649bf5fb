package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storefront-svc/circuitbreaker"
	"storefront-svc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentSignature(t *testing.T) {
	got := PaymentSignature([]byte("gateway-secret"), "order_gw1", "pay_1")
	assert.Equal(t, "e8a504638c32d34edc4fd614c026a1cd2deff77ec9e981a56f3f53df8a86744d", got)
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	f.addSave10(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "SAVE10")

	gw, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_gw1", gw.ID)
	assert.Equal(t, int64(185000), f.gateway.amount)
	assert.Equal(t, "INR", f.gateway.currency)
	assert.Equal(t, order.ID, f.gateway.receipt)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, models.PaymentStatusPending, stored.Payment.Status)
	assert.Equal(t, "order_gw1", stored.Payment.GatewayOrderID)
	firstID := stored.Payment.ID

	// Reopening checkout hands back the pending gateway order.
	again, err := f.payments.InitiatePayment(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, gw, again)
	assert.Equal(t, 1, f.gateway.calls)

	stored, err = f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, firstID, stored.Payment.ID)
	assert.Equal(t, "order_gw1", stored.Payment.GatewayOrderID)
	assert.Equal(t, 10, f.store.stock("p1"), "initiating never touches stock")
}

func TestInitiatePayment_RepeatKeepsFirstGatewayOrderPayable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")

	first, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)
	second, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	sig := PaymentSignature([]byte(testSecret), first.ID, "pay_1")
	res, err := f.payments.VerifyPayment(ctx, first.ID, "pay_1", sig)
	require.NoError(t, err)
	assert.Equal(t, order.ID, res.OrderID)
	assert.Equal(t, 8, f.store.stock("p1"))
}

func TestInitiatePayment_AfterCompletionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")
	f.payOrder(t, alice, order)
	calls := f.gateway.calls

	_, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	requireCode(t, err, ErrPaymentNotAllowed)
	assert.Equal(t, calls, f.gateway.calls)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Payment.Status)
	assert.Equal(t, "order_gw1", stored.Payment.GatewayOrderID)
}

func TestInitiatePayment_PaidDuringGatewayCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")

	// A second checkout opens and is paid while the first is still waiting
	// on the gateway.
	f.gateway.during = func() {
		gw, err := f.payments.InitiatePayment(ctx, alice, order.ID)
		require.NoError(t, err)
		require.Equal(t, "order_gw2", gw.ID)
		sig := PaymentSignature([]byte(testSecret), gw.ID, "pay_2")
		_, err = f.payments.VerifyPayment(ctx, gw.ID, "pay_2", sig)
		require.NoError(t, err)
	}

	_, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	requireCode(t, err, ErrPaymentNotAllowed)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Payment.Status)
	assert.Equal(t, "order_gw2", stored.Payment.GatewayOrderID)
	assert.Equal(t, 8, f.store.stock("p1"))

	// The paid order still cancels with a refund and restock.
	res, err := f.orders.CancelOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Refund)
	assert.True(t, res.Refund.Amount.Equal(order.TotalAmount))
	assert.Equal(t, 10, f.store.stock("p1"))
}

func TestInitiatePayment_ConcurrentInitiationWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")

	var inner models.GatewayOrder
	f.gateway.during = func() {
		var err error
		inner, err = f.payments.InitiatePayment(ctx, alice, order.ID)
		require.NoError(t, err)
	}

	outer, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_gw2", inner.ID)
	assert.Equal(t, inner.ID, outer.ID, "the recorded gateway order is the one handed out")

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_gw2", stored.Payment.GatewayOrderID)
}

func TestInitiatePayment_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cod := f.placeOrder(t, alice, models.PaymentMethodCOD, "")
	_, err := f.payments.InitiatePayment(ctx, alice, cod.ID)
	requireCode(t, err, ErrPaymentNotAllowed)

	online := f.placeOrder(t, alice, models.PaymentMethodOnline, "")
	_, err = f.payments.InitiatePayment(ctx, bob, online.ID)
	requireCode(t, err, ErrForbidden)

	_, err = f.payments.InitiatePayment(ctx, alice, "missing")
	requireCode(t, err, ErrOrderNotFound)

	f.store.addCoupon(models.Coupon{Code: "FREE", Type: models.CouponTypeFlat, Value: dec("5000")})
	free := f.placeOrder(t, alice, models.PaymentMethodOnline, "FREE")
	require.True(t, free.TotalAmount.IsZero())
	_, err = f.payments.InitiatePayment(ctx, alice, free.ID)
	requireCode(t, err, ErrPaymentNotAllowed)

	assert.Equal(t, 0, f.gateway.calls)
}

func TestInitiatePayment_GatewayErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")

	f.gateway.err = fmt.Errorf("razorpay: %w", circuitbreaker.ErrCircuitOpen)
	_, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	se := requireCode(t, err, ErrGatewayUnavailable)
	assert.Equal(t, KindUpstream, se.Kind)

	upstream := errors.New("502 bad gateway")
	f.gateway.err = upstream
	_, err = f.payments.InitiatePayment(ctx, alice, order.ID)
	requireCode(t, err, ErrGatewayFailure)
	assert.ErrorIs(t, err, upstream)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Payment, "no payment row without a gateway order")
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")
	gw, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)
	sig := PaymentSignature([]byte(testSecret), gw.ID, "pay_1")

	res, err := f.payments.VerifyPayment(ctx, gw.ID, "pay_1", sig)
	require.NoError(t, err)
	assert.Equal(t, order.ID, res.OrderID)
	assert.False(t, res.AlreadyVerified)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Payment.Status)
	require.NotNil(t, stored.Payment.GatewayPaymentID)
	assert.Equal(t, "pay_1", *stored.Payment.GatewayPaymentID)
	assert.Equal(t, 8, f.store.stock("p1"))
	assert.Equal(t, []string{"p1"}, f.cache.invalidated)
	assert.Contains(t, f.events.types(), models.EventPaymentCompleted)

	// A replayed callback is acknowledged without committing stock twice.
	res, err = f.payments.VerifyPayment(ctx, gw.ID, "pay_1", sig)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)
	assert.Equal(t, order.ID, res.OrderID)
	assert.Equal(t, 8, f.store.stock("p1"))
}

func TestVerifyPayment_SignatureMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")
	gw, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)

	forged := PaymentSignature([]byte("wrong-secret"), gw.ID, "pay_1")
	_, err = f.payments.VerifyPayment(ctx, gw.ID, "pay_1", forged)
	requireCode(t, err, ErrSignatureMismatch)

	_, err = f.payments.VerifyPayment(ctx, gw.ID, "pay_1", "")
	requireCode(t, err, ErrSignatureMismatch)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Equal(t, models.PaymentStatusPending, stored.Payment.Status)
	assert.Equal(t, 10, f.store.stock("p1"))
}

func TestVerifyPayment_UnknownGatewayOrder(t *testing.T) {
	f := newFixture(t)
	sig := PaymentSignature([]byte(testSecret), "order_ghost", "pay_1")

	_, err := f.payments.VerifyPayment(context.Background(), "order_ghost", "pay_1", sig)
	requireCode(t, err, ErrPaymentNotFound)
}

func TestVerifyPayment_CancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")
	gw, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, alice, order.ID)
	require.NoError(t, err)

	sig := PaymentSignature([]byte(testSecret), gw.ID, "pay_1")
	_, err = f.payments.VerifyPayment(ctx, gw.ID, "pay_1", sig)
	requireCode(t, err, ErrPaymentNotAllowed)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentStatusPending, stored.Payment.Status)
	assert.Equal(t, 10, f.store.stock("p1"))
}

func TestVerifyPayment_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, alice, models.PaymentMethodOnline, "")
	gw, err := f.payments.InitiatePayment(ctx, alice, order.ID)
	require.NoError(t, err)

	// Someone else bought most of the stock in the meantime.
	require.NoError(t, f.store.AdjustStock(ctx, "p1", -9, true))

	sig := PaymentSignature([]byte(testSecret), gw.ID, "pay_1")
	_, err = f.payments.VerifyPayment(ctx, gw.ID, "pay_1", sig)
	requireCode(t, err, ErrInsufficientStock)

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Equal(t, models.PaymentStatusPending, stored.Payment.Status)
	assert.Equal(t, 1, f.store.stock("p1"))
}
