package store

import (
	"context"
	"errors"
	"fmt"

	"storefront-svc/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (q *Queries) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = $1",
		id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Product{}, notFound(err)
	}
	return p, nil
}

func (q *Queries) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name, price, stock, created_at, updated_at FROM products ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (q *Queries) AdjustStock(ctx context.Context, productID string, delta int, floorGuard bool) error {
	if !floorGuard || delta >= 0 {
		res, err := q.db.ExecContext(ctx,
			"UPDATE products SET stock = stock + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
			delta, productID,
		)
		if err != nil {
			return fmt.Errorf("failed to adjust stock for %s: %w", productID, err)
		}
		return expectOneRow(res)
	}

	res, err := q.db.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND stock + $1 >= 0",
		delta, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust stock for %s: %w", productID, err)
	}
	if err := expectOneRow(res); !errors.Is(err, ErrNotFound) {
		return err
	}

	// Nothing updated: either the product is gone or the floor held.
	if _, err := q.GetProduct(ctx, productID); err != nil {
		return err
	}
	return ErrInsufficientStock
}

func (q *Queries) GetCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, p.price
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 ORDER BY ci.created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddCartItem inserts the item, or increments the quantity of the existing
// line for the same product.
func (q *Queries) AddCartItem(ctx context.Context, item *models.CartItem) error {
	ensureID(&item.ID)
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO cart_items (id, user_id, product_id, quantity) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity`,
		item.ID, item.UserID, item.ProductID, item.Quantity,
	).Scan(&item.ID, &item.Quantity)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (q *Queries) UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) (models.CartItem, error) {
	var it models.CartItem
	err := q.db.QueryRowContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3 RETURNING id, user_id, product_id, quantity",
		quantity, itemID, userID,
	).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity)
	if err != nil {
		return models.CartItem{}, notFound(err)
	}
	return it, nil
}

func (q *Queries) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (q *Queries) ClearCart(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
