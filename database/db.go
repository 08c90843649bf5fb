package database

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-svc/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func InitDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return db, nil
}

// Migrate creates every table the service needs if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price NUMERIC(12, 2) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		code VARCHAR(64) UNIQUE NOT NULL,
		type VARCHAR(16) NOT NULL,
		value NUMERIC(12, 2) NOT NULL,
		min_order NUMERIC(12, 2),
		max_discount NUMERIC(12, 2),
		usage_limit INTEGER,
		current_usage INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		subtotal NUMERIC(12, 2) NOT NULL,
		discount_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		coupon_code VARCHAR(64),
		total_amount NUMERIC(12, 2) NOT NULL,
		payment_method VARCHAR(16) NOT NULL,
		shipping_address JSONB,
		tracking_number VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price NUMERIC(12, 2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coupon_usages (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		coupon_id TEXT NOT NULL REFERENCES coupons(id),
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		order_id TEXT UNIQUE NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		gateway_order_id VARCHAR(255) UNIQUE NOT NULL,
		gateway_payment_id VARCHAR(255),
		signature VARCHAR(255),
		amount NUMERIC(12, 2) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_returns (
		id TEXT PRIMARY KEY,
		order_id TEXT UNIQUE NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		type VARCHAR(16) NOT NULL,
		reason TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		admin_notes TEXT,
		requested_at TIMESTAMPTZ NOT NULL,
		approved_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS refunds (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		amount NUMERIC(12, 2) NOT NULL,
		method VARCHAR(64) NOT NULL,
		reason VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		transaction_id VARCHAR(255),
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
}
