package service

import (
	"context"
	"fmt"
	"time"

	"storefront-svc/models"

	"go.uber.org/zap"
)

const tracerName = "storefront-service"

// Clock returns the current time.
type Clock func() time.Time

// Policy holds the business windows and the stock floor rule shared by the
// order and payment flows.
type Policy struct {
	CancelWindow    time.Duration
	ReturnWindow    time.Duration
	StockFloorGuard bool
	Now             Clock
}

func (p Policy) withDefaults() Policy {
	if p.CancelWindow <= 0 {
		p.CancelWindow = 12 * time.Hour
	}
	if p.ReturnWindow <= 0 {
		p.ReturnWindow = 72 * time.Hour
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// EventPublisher emits lifecycle events after a transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// ProductCache is the read-through cache in front of the catalog.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	SetProduct(ctx context.Context, p models.Product) error
	InvalidateProducts(ctx context.Context, ids ...string) error
}

// notifier bundles the post-commit side effects. Publishing and cache
// invalidation never fail the operation that triggered them.
type notifier struct {
	events EventPublisher
	cache  ProductCache
	logger *zap.Logger
}

func (n notifier) publish(ctx context.Context, event models.OrderEvent) {
	if n.events == nil {
		return
	}
	if err := n.events.Publish(ctx, event); err != nil {
		n.logger.Error("Failed to publish event",
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func (n notifier) invalidate(ctx context.Context, items []models.OrderItem) {
	if n.cache == nil || len(items) == 0 {
		return
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	if err := n.cache.InvalidateProducts(ctx, ids...); err != nil {
		n.logger.Warn("Failed to invalidate product cache", zap.Strings("product_ids", ids), zap.Error(err))
	}
}

// describeWindow renders a window for user-facing messages, e.g. "12 hours"
// or "3 days".
func describeWindow(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%g hours", d.Hours())
}
