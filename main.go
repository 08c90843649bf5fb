package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-svc/cache"
	"storefront-svc/config"
	"storefront-svc/database"
	"storefront-svc/gateway"
	"storefront-svc/handlers"
	"storefront-svc/kafka"
	"storefront-svc/middleware"
	"storefront-svc/service"
	"storefront-svc/store"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	grpcLib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	if cfg.Gateway.KeySecret == "" {
		logger.Warn("RAZORPAY_KEY_SECRET is not set; payment verification will reject every signature")
	}

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Initialize database
	ctx := context.Background()
	db, err := database.InitDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	rdb, err := cache.InitRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	notifierCtx, stopNotifier := context.WithCancel(ctx)
	defer stopNotifier()
	if cfg.Kafka.Notifications {
		consumer, err := kafka.InitConsumer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
		}
		defer consumer.Close()

		go func() {
			if err := kafka.StartNotifier(notifierCtx, consumer, cfg.Kafka.Topic, logger); err != nil {
				logger.Error("Kafka notifier error", zap.Error(err))
			}
		}()
	}

	st := store.NewPostgres(db)
	events := kafka.NewPublisher(producer, cfg.Kafka.Topic, logger)
	productCache := cache.NewProductCache(rdb, cfg.Redis.ProductTTL)
	razorpay := gateway.NewRazorpay(cfg.Gateway, logger)
	policy := service.Policy{
		CancelWindow:    cfg.CancelWindow,
		ReturnWindow:    cfg.ReturnWindow,
		StockFloorGuard: cfg.StockFloorGuard,
		Now:             time.Now,
	}

	svc := handlers.Services{
		Coupons:  service.NewCouponService(st, time.Now, logger),
		Orders:   service.NewOrderService(st, events, productCache, policy, logger),
		Payments: service.NewPaymentService(st, razorpay, cfg.Gateway.KeySecret, cfg.Gateway.Currency, events, productCache, policy, logger),
		Returns:  service.NewReturnService(st, events, time.Now, logger),
		Cart:     service.NewCartService(st, logger),
		Catalog:  service.NewCatalogService(st, productCache, logger),
		Admin:    service.NewAdminService(st),
	}

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())
	handlers.RegisterRoutes(router, svc, []byte(cfg.JWTSecret), logger)

	// Start REST server
	restSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Storefront REST API started", zap.String("addr", cfg.HTTPAddr))

	// Start gRPC server
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer := grpcLib.NewServer(
		grpcLib.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	logger.Info("Storefront gRPC health server started", zap.String("addr", cfg.GRPCAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	healthServer.Shutdown()
	stopNotifier()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := restSrv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("REST server forced to shutdown", zap.Error(err))
	}

	grpcServer.GracefulStop()

	logger.Info("Servers exited")
}
