package service

import (
	"context"

	"storefront-svc/models"
	"storefront-svc/store"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

type AdminService struct {
	store store.Repository
}

func NewAdminService(st store.Repository) *AdminService {
	return &AdminService{store: st}
}

// Stats gathers the dashboard counters concurrently.
func (s *AdminService) Stats(ctx context.Context) (models.OrderStats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "AdminStats")
	defer span.End()

	var stats models.OrderStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountOrders(gctx)
		stats.TotalOrders = n
		return err
	})
	g.Go(func() error {
		sum, err := s.store.SumRevenue(gctx)
		stats.TotalRevenue = sum
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountProducts(gctx)
		stats.TotalProducts = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountReturnsByStatus(gctx, models.ReturnStatusRequested)
		stats.PendingReturns = n
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return models.OrderStats{}, asError(err)
	}
	return stats, nil
}
