package store

import (
	"context"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

// Repository is the full set of reads and writes over the relational store.
// Lock* methods take a row lock and are only meaningful inside InTx.
type Repository interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	// AdjustStock adds delta to a product's stock. With floorGuard set a
	// negative delta that would take stock below zero fails with
	// ErrInsufficientStock.
	AdjustStock(ctx context.Context, productID string, delta int, floorGuard bool) error

	GetCart(ctx context.Context, userID string) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) (models.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, itemID string) error
	ClearCart(ctx context.Context, userID string) error

	CreateCoupon(ctx context.Context, c *models.Coupon) error
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	DeleteCoupon(ctx context.Context, id string) error
	GetCouponByCode(ctx context.Context, code string) (models.Coupon, error)
	LockCouponByCode(ctx context.Context, code string) (models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID string) error
	CreateCouponUsage(ctx context.Context, u *models.CouponUsage) error

	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
	LockOrder(ctx context.Context, id string) (models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	LockPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error

	CreateReturn(ctx context.Context, r *models.OrderReturn) error
	LockReturn(ctx context.Context, id string) (models.OrderReturn, error)
	UpdateReturn(ctx context.Context, r *models.OrderReturn) error
	ListReturns(ctx context.Context) ([]models.OrderReturn, error)

	CreateRefund(ctx context.Context, r *models.Refund) error
	LockRefund(ctx context.Context, id string) (models.Refund, error)
	UpdateRefund(ctx context.Context, r *models.Refund) error
	ListRefunds(ctx context.Context) ([]models.Refund, error)

	CountOrders(ctx context.Context) (int64, error)
	SumRevenue(ctx context.Context) (decimal.Decimal, error)
	CountProducts(ctx context.Context) (int64, error)
	CountReturnsByStatus(ctx context.Context, status models.ReturnStatus) (int64, error)
}

// Store is a Repository that can also run a unit of work atomically.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

