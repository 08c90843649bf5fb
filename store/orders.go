package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-svc/models"
)

const orderColumns = "id, user_id, status, subtotal, discount_amount, coupon_code, total_amount, payment_method, " +
	"shipping_address, tracking_number, created_at, updated_at, shipped_at, delivered_at"

func scanOrder(row rowScanner) (models.Order, error) {
	var (
		o              models.Order
		couponCode     sql.NullString
		address        []byte
		trackingNumber sql.NullString
		shippedAt      sql.NullTime
		deliveredAt    sql.NullTime
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.DiscountAmount, &couponCode,
		&o.TotalAmount, &o.PaymentMethod, &address, &trackingNumber,
		&o.CreatedAt, &o.UpdatedAt, &shippedAt, &deliveredAt)
	if err != nil {
		return models.Order{}, err
	}
	if couponCode.Valid {
		o.CouponCode = &couponCode.String
	}
	if len(address) > 0 {
		o.ShippingAddress = address
	}
	if trackingNumber.Valid {
		o.TrackingNumber = &trackingNumber.String
	}
	if shippedAt.Valid {
		o.ShippedAt = &shippedAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	return o, nil
}

// CreateOrder inserts the order row and its item snapshot.
func (q *Queries) CreateOrder(ctx context.Context, o *models.Order) error {
	ensureID(&o.ID)

	var address any
	if len(o.ShippingAddress) > 0 {
		address = string(o.ShippingAddress)
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, subtotal, discount_amount, coupon_code, total_amount,
			payment_method, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, o.Status, o.Subtotal, o.DiscountAmount, o.CouponCode, o.TotalAmount,
		o.PaymentMethod, address, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		ensureID(&it.ID)
		it.OrderID = o.ID
		_, err := q.db.ExecContext(ctx,
			"INSERT INTO order_items (id, order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)",
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (q *Queries) GetOrder(ctx context.Context, id string) (models.Order, error) {
	return q.getOrder(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (q *Queries) LockOrder(ctx context.Context, id string) (models.Order, error) {
	return q.getOrder(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (q *Queries) getOrder(ctx context.Context, query, id string) (models.Order, error) {
	o, err := scanOrder(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Order{}, notFound(err)
	}
	if err := q.loadOrderRelations(ctx, &o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (q *Queries) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return q.listOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (q *Queries) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	return q.listOrders(ctx,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT $1", limit)
}

func (q *Queries) listOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Relations are loaded after the cursor is closed so that the same
	// connection can be reused inside a transaction.
	for i := range orders {
		if err := q.loadOrderRelations(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (q *Queries) UpdateOrder(ctx context.Context, o *models.Order) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, tracking_number = $2, shipped_at = $3, delivered_at = $4, updated_at = $5
		WHERE id = $6`,
		o.Status, o.TrackingNumber, o.ShippedAt, o.DeliveredAt, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return expectOneRow(res)
}

func (q *Queries) loadOrderRelations(ctx context.Context, o *models.Order) error {
	items, err := q.listOrderItems(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Items = items

	payment, err := q.getPaymentByOrderID(ctx, o.ID)
	switch err {
	case nil:
		o.Payment = &payment
	case ErrNotFound:
	default:
		return err
	}

	returns, err := q.listReturnsByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Returns = returns
	return nil
}

func (q *Queries) listOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
