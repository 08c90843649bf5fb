package store

import (
	"context"

	"storefront-svc/models"

	"github.com/shopspring/decimal"
)

func (q *Queries) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders").Scan(&n)
	return n, err
}

// SumRevenue totals every order that was not cancelled.
func (q *Queries) SumRevenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status <> $1",
		models.OrderStatusCancelled,
	).Scan(&total)
	return total, err
}

func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}

func (q *Queries) CountReturnsByStatus(ctx context.Context, status models.ReturnStatus) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_returns WHERE status = $1", status).Scan(&n)
	return n, err
}
