package service

import (
	"context"
	"errors"

	"storefront-svc/models"
	"storefront-svc/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CatalogService serves product reads, going through the cache first.
type CatalogService struct {
	store  store.Repository
	cache  ProductCache
	logger *zap.Logger
}

func NewCatalogService(st store.Repository, cache ProductCache, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: st, cache: cache, logger: logger}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListProducts")
	defer span.End()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, asError(err)
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (models.Product, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))

	if s.cache != nil {
		if p, err := s.cache.GetProduct(ctx, id); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return p, nil
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		span.RecordError(err)
		return models.Product{}, asError(storeErr(err, ErrProductNotFound))
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, p); err != nil {
			s.logger.Warn("Failed to cache product", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

type CartService struct {
	store  store.Repository
	logger *zap.Logger
}

func NewCartService(st store.Repository, logger *zap.Logger) *CartService {
	return &CartService{store: st, logger: logger}
}

func (s *CartService) GetCart(ctx context.Context, actor models.Identity) (models.Cart, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "GetCart")
	defer span.End()

	items, err := s.store.GetCart(ctx, actor.UserID)
	if err != nil {
		span.RecordError(err)
		return models.Cart{}, asError(err)
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return models.Cart{UserID: actor.UserID, Items: items}, nil
}

// AddItem puts a product in the cart. Adding a product that is already
// there increases its quantity.
func (s *CartService) AddItem(ctx context.Context, actor models.Identity, productID string, quantity int) (models.CartItem, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "AddCartItem")
	defer span.End()

	if quantity <= 0 {
		return models.CartItem{}, ErrInvalidInput.WithMessage("Quantity must be at least 1").WithFields("quantity")
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return models.CartItem{}, asError(storeErr(err, ErrProductNotFound))
	}

	item := models.CartItem{
		UserID:    actor.UserID,
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
	}
	if err := s.store.AddCartItem(ctx, &item); err != nil {
		span.RecordError(err)
		return models.CartItem{}, asError(storeErr(err, ErrProductNotFound))
	}
	s.logger.Debug("Cart item added",
		zap.String("user_id", actor.UserID),
		zap.String("product_id", productID),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

func (s *CartService) UpdateItem(ctx context.Context, actor models.Identity, itemID string, quantity int) (models.CartItem, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "UpdateCartItem")
	defer span.End()

	if quantity <= 0 {
		return models.CartItem{}, ErrInvalidInput.WithMessage("Quantity must be at least 1").WithFields("quantity")
	}
	item, err := s.store.UpdateCartItem(ctx, actor.UserID, itemID, quantity)
	if err != nil {
		span.RecordError(err)
		return models.CartItem{}, asError(storeErr(err, ErrCartItemNotFound))
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, actor models.Identity, itemID string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "RemoveCartItem")
	defer span.End()

	if err := s.store.DeleteCartItem(ctx, actor.UserID, itemID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			span.RecordError(err)
		}
		return asError(storeErr(err, ErrCartItemNotFound))
	}
	return nil
}
