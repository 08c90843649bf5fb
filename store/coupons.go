package store

import (
	"context"
	"database/sql"
	"errors"

	"storefront-svc/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var ErrReferenced = errors.New("record is still referenced")

const couponColumns = "id, code, type, value, min_order, max_discount, usage_limit, current_usage, expires_at, created_at"

func scanCoupon(row rowScanner) (models.Coupon, error) {
	var (
		c           models.Coupon
		minOrder    decimal.NullDecimal
		maxDiscount decimal.NullDecimal
		usageLimit  sql.NullInt64
		expiresAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Code, &c.Type, &c.Value, &minOrder, &maxDiscount,
		&usageLimit, &c.CurrentUsage, &expiresAt, &c.CreatedAt)
	if err != nil {
		return models.Coupon{}, err
	}
	if minOrder.Valid {
		c.MinOrder = &minOrder.Decimal
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Decimal
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		c.UsageLimit = &n
	}
	if expiresAt.Valid {
		c.ExpiresAt = &expiresAt.Time
	}
	return c, nil
}

func (q *Queries) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	ensureID(&c.ID)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO coupons (id, code, type, value, min_order, max_discount, usage_limit, current_usage, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Code, c.Type, c.Value, c.MinOrder, c.MaxDiscount, c.UsageLimit, c.CurrentUsage, c.ExpiresAt, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (q *Queries) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+couponColumns+" FROM coupons ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := []models.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (q *Queries) DeleteCoupon(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrReferenced
		}
		return err
	}
	return expectOneRow(res)
}

func (q *Queries) GetCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	c, err := scanCoupon(q.db.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1", code))
	return c, notFound(err)
}

func (q *Queries) LockCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	c, err := scanCoupon(q.db.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1 FOR UPDATE", code))
	return c, notFound(err)
}

func (q *Queries) IncrementCouponUsage(ctx context.Context, couponID string) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE coupons SET current_usage = current_usage + 1 WHERE id = $1", couponID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (q *Queries) CreateCouponUsage(ctx context.Context, u *models.CouponUsage) error {
	ensureID(&u.ID)
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO coupon_usages (id, order_id, coupon_id, user_id, created_at) VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.OrderID, u.CouponID, u.UserID, u.CreatedAt,
	)
	return err
}
