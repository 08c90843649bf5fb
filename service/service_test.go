package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "gateway-secret"

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var (
	alice = models.Identity{UserID: "alice", Role: models.RoleUser}
	bob   = models.Identity{UserID: "bob", Role: models.RoleUser}
	admin = models.Identity{UserID: "root", Role: models.RoleAdmin}
)

type fixture struct {
	store   *memStore
	clock   *testClock
	events  *recordingPublisher
	cache   *recordingCache
	gateway *fakeGateway

	coupons  *CouponService
	orders   *OrderService
	payments *PaymentService
	returns  *ReturnService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithGuard(t, true)
}

func newFixtureWithGuard(t *testing.T, guard bool) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		store:   newMemStore(),
		clock:   &testClock{now: baseTime},
		events:  &recordingPublisher{},
		cache:   &recordingCache{},
		gateway: &fakeGateway{},
	}
	policy := Policy{
		CancelWindow:    12 * time.Hour,
		ReturnWindow:    72 * time.Hour,
		StockFloorGuard: guard,
		Now:             f.clock.Now,
	}
	f.coupons = NewCouponService(f.store, f.clock.Now, logger)
	f.orders = NewOrderService(f.store, f.events, f.cache, policy, logger)
	f.payments = NewPaymentService(f.store, f.gateway, testSecret, "INR", f.events, f.cache, policy, logger)
	f.returns = NewReturnService(f.store, f.events, f.clock.Now, logger)

	f.store.addProduct("p1", "1000", 10)
	f.store.addProduct("p2", "500", 5)
	return f
}

func (f *fixture) fillCart(t *testing.T, user models.Identity, productID string, qty int) {
	t.Helper()
	err := f.store.AddCartItem(context.Background(), &models.CartItem{UserID: user.UserID, ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

// placeOrder fills the cart with two units of p1 (subtotal 2000) and checks out.
func (f *fixture) placeOrder(t *testing.T, user models.Identity, method models.PaymentMethod, coupon string) models.Order {
	t.Helper()
	f.fillCart(t, user, "p1", 2)
	order, err := f.orders.CreateOrder(context.Background(), user, CreateOrderInput{
		ShippingAddress: json.RawMessage(`{"line1":"12 MG Road","city":"Bengaluru"}`),
		CouponCode:      coupon,
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	return order
}

// payOrder initiates and verifies an online payment for order.
func (f *fixture) payOrder(t *testing.T, user models.Identity, order models.Order) string {
	t.Helper()
	gw, err := f.payments.InitiatePayment(context.Background(), user, order.ID)
	require.NoError(t, err)
	sig := PaymentSignature([]byte(testSecret), gw.ID, "pay_"+order.ID)
	_, err = f.payments.VerifyPayment(context.Background(), gw.ID, "pay_"+order.ID, sig)
	require.NoError(t, err)
	return gw.ID
}

// deliveredOrder places a COD order at baseTime and walks it to DELIVERED.
func (f *fixture) deliveredOrder(t *testing.T, user models.Identity) models.Order {
	t.Helper()
	ctx := context.Background()
	order := f.placeOrder(t, user, models.PaymentMethodCOD, "")
	_, err := f.orders.UpdateShipping(ctx, order.ID, ShippingUpdate{Status: models.OrderStatusShipped, TrackingNumber: "TRK-1"})
	require.NoError(t, err)
	order, err = f.orders.MarkDelivered(ctx, order.ID, nil)
	require.NoError(t, err)
	return order
}

func (f *fixture) addSave10(t *testing.T) models.Coupon {
	t.Helper()
	maxDiscount := decimal.NewFromInt(150)
	return f.store.addCoupon(models.Coupon{
		Code:        "SAVE10",
		Type:        models.CouponTypePercentage,
		Value:       decimal.NewFromInt(10),
		MaxDiscount: &maxDiscount,
	})
}

func requireCode(t *testing.T, err error, want *Error) *Error {
	t.Helper()
	require.ErrorIs(t, err, want)
	var se *Error
	require.ErrorAs(t, err, &se)
	return se
}
