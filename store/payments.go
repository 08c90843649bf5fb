package store

import (
	"context"
	"database/sql"
	"errors"

	"storefront-svc/models"
)

const paymentColumns = "id, order_id, gateway_order_id, gateway_payment_id, signature, amount, status, created_at, updated_at"

func scanPayment(row rowScanner) (models.Payment, error) {
	var (
		p         models.Payment
		paymentID sql.NullString
		signature sql.NullString
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.GatewayOrderID, &paymentID, &signature,
		&p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Payment{}, err
	}
	if paymentID.Valid {
		p.GatewayPaymentID = &paymentID.String
	}
	if signature.Valid {
		p.Signature = &signature.String
	}
	return p, nil
}

// CreatePayment records the pending payment for an order. An order carries
// at most one payment; a second insert returns ErrDuplicate.
func (q *Queries) CreatePayment(ctx context.Context, p *models.Payment) error {
	ensureID(&p.ID)
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO payments (id, order_id, gateway_order_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, created_at`,
		p.ID, p.OrderID, p.GatewayOrderID, p.Amount, p.Status, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicate
	}
	return err
}

func (q *Queries) LockPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (models.Payment, error) {
	p, err := scanPayment(q.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE gateway_order_id = $1 FOR UPDATE", gatewayOrderID))
	return p, notFound(err)
}

func (q *Queries) getPaymentByOrderID(ctx context.Context, orderID string) (models.Payment, error) {
	p, err := scanPayment(q.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1", orderID))
	return p, notFound(err)
}

func (q *Queries) UpdatePayment(ctx context.Context, p *models.Payment) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE payments SET gateway_payment_id = $1, signature = $2, status = $3, updated_at = $4 WHERE id = $5",
		p.GatewayPaymentID, p.Signature, p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}
