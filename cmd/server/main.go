package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/api"
	"github.com/Krucheverba/m2-middleware-sub001/internal/config"
	"github.com/Krucheverba/m2-middleware-sub001/internal/erp"
	"github.com/Krucheverba/m2-middleware-sub001/internal/mapper"
	"github.com/Krucheverba/m2-middleware-sub001/internal/mapping"
	"github.com/Krucheverba/m2-middleware-sub001/internal/marketplace"
	"github.com/Krucheverba/m2-middleware-sub001/internal/metrics"
	"github.com/Krucheverba/m2-middleware-sub001/internal/repository/postgres"
	"github.com/Krucheverba/m2-middleware-sub001/internal/scheduler"
	syncsvc "github.com/Krucheverba/m2-middleware-sub001/internal/sync"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting marketplace sync engine",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := postgres.RunMigrations(cfg.Database, "migrations"); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db, logger)

	// Load the identity mapping document
	recorder := metrics.NewRecorder()
	store := mapping.NewFileStore(cfg.Sync.MappingFile, logger)
	mapperSvc := mapper.New(store, recorder, logger)
	if err := mapperSvc.LoadMappings(); err != nil {
		// the engine can start without mappings; lookups fail accounted
		// until an admin reload succeeds
		logger.Error("Initial mapping load failed", zap.Error(err))
	}

	// External API clients
	erpClient := erp.NewClient(cfg.ERP, logger)
	marketClient := marketplace.NewClient(cfg.Marketplace, logger)

	// Synchronizers
	stockSyncer := syncsvc.NewStockSyncer(mapperSvc, erpClient, marketClient, recorder, logger, cfg.Sync.MaxAttempts)
	orderSyncer := syncsvc.NewOrderSyncer(mapperSvc, marketClient, erpClient, repos.OrderMapping, recorder, logger)

	// Scheduled jobs: stock sync, order poll, shipment poll
	sched := scheduler.NewScheduler(logger)
	sched.Add(scheduler.Job{
		Name:     "stock-sync",
		Interval: cfg.Sync.StockInterval,
		Run:      stockSyncer.SyncAll,
	})
	sched.Add(scheduler.Job{
		Name:     "order-poll",
		Interval: cfg.Sync.OrderPollInterval,
		Run:      func(ctx context.Context) { _ = orderSyncer.PollAndProcessOrders(ctx) },
	})
	sched.Add(scheduler.Job{
		Name:     "shipment-poll",
		Interval: cfg.Sync.ShipmentPollInterval,
		Run:      func(ctx context.Context) { _ = orderSyncer.ProcessShippedOrders(ctx) },
	})
	sched.Start()

	// Initialize router
	router := api.NewRouter(cfg, mapperSvc, stockSyncer, erpClient, recorder, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop scheduled jobs first so no new sync passes start mid-shutdown
	sched.StopAll()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
