package store

import (
	"context"
	"database/sql"

	"storefront-svc/models"
)

const returnColumns = "id, order_id, type, reason, status, admin_notes, requested_at, approved_at"

func scanReturn(row rowScanner) (models.OrderReturn, error) {
	var (
		r          models.OrderReturn
		adminNotes sql.NullString
		approvedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.OrderID, &r.Type, &r.Reason, &r.Status, &adminNotes, &r.RequestedAt, &approvedAt)
	if err != nil {
		return models.OrderReturn{}, err
	}
	if adminNotes.Valid {
		r.AdminNotes = &adminNotes.String
	}
	if approvedAt.Valid {
		r.ApprovedAt = &approvedAt.Time
	}
	return r, nil
}

func (q *Queries) CreateReturn(ctx context.Context, r *models.OrderReturn) error {
	ensureID(&r.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO order_returns (id, order_id, type, reason, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.OrderID, r.Type, r.Reason, r.Status, r.RequestedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (q *Queries) LockReturn(ctx context.Context, id string) (models.OrderReturn, error) {
	r, err := scanReturn(q.db.QueryRowContext(ctx,
		"SELECT "+returnColumns+" FROM order_returns WHERE id = $1 FOR UPDATE", id))
	return r, notFound(err)
}

func (q *Queries) UpdateReturn(ctx context.Context, r *models.OrderReturn) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE order_returns SET status = $1, admin_notes = $2, approved_at = $3 WHERE id = $4",
		r.Status, r.AdminNotes, r.ApprovedAt, r.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (q *Queries) ListReturns(ctx context.Context) ([]models.OrderReturn, error) {
	return q.listReturns(ctx, "SELECT "+returnColumns+" FROM order_returns ORDER BY requested_at DESC")
}

func (q *Queries) listReturnsByOrder(ctx context.Context, orderID string) ([]models.OrderReturn, error) {
	return q.listReturns(ctx,
		"SELECT "+returnColumns+" FROM order_returns WHERE order_id = $1 ORDER BY requested_at DESC", orderID)
}

func (q *Queries) listReturns(ctx context.Context, query string, args ...any) ([]models.OrderReturn, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := []models.OrderReturn{}
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

const refundColumns = "id, order_id, amount, method, reason, status, transaction_id, notes, created_at, completed_at"

func scanRefund(row rowScanner) (models.Refund, error) {
	var (
		r             models.Refund
		transactionID sql.NullString
		notes         sql.NullString
		completedAt   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.OrderID, &r.Amount, &r.Method, &r.Reason, &r.Status,
		&transactionID, &notes, &r.CreatedAt, &completedAt)
	if err != nil {
		return models.Refund{}, err
	}
	if transactionID.Valid {
		r.TransactionID = &transactionID.String
	}
	if notes.Valid {
		r.Notes = &notes.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

func (q *Queries) CreateRefund(ctx context.Context, r *models.Refund) error {
	ensureID(&r.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO refunds (id, order_id, amount, method, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.OrderID, r.Amount, r.Method, r.Reason, r.Status, r.CreatedAt,
	)
	return err
}

func (q *Queries) LockRefund(ctx context.Context, id string) (models.Refund, error) {
	r, err := scanRefund(q.db.QueryRowContext(ctx,
		"SELECT "+refundColumns+" FROM refunds WHERE id = $1 FOR UPDATE", id))
	return r, notFound(err)
}

func (q *Queries) UpdateRefund(ctx context.Context, r *models.Refund) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE refunds SET method = $1, status = $2, transaction_id = $3, notes = $4, completed_at = $5 WHERE id = $6",
		r.Method, r.Status, r.TransactionID, r.Notes, r.CompletedAt, r.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (q *Queries) ListRefunds(ctx context.Context) ([]models.Refund, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+refundColumns+" FROM refunds ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := []models.Refund{}
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}
