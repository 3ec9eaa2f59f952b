package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distribution-engine/config"
	"distribution-engine/internal/api"
	"distribution-engine/internal/broker"
	"distribution-engine/internal/redisclient"
	"distribution-engine/internal/service"
	"distribution-engine/internal/store"
	"distribution-engine/internal/util"
	"distribution-engine/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.Name); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting distribution engine", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(cfg.Server.Name, cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicSales))

	eventPublisher := broker.NewEventPublisher(producer)

	rateTable := service.NewRateTable(db, redisClient, cfg.Redis.RateTTL)
	rateSync := service.NewRateSync(db, rateTable)
	settler := service.NewSettler(db, rateTable, cfg.Business.NoCommissionPlatform)
	reservationService := service.NewReservationService(db, eventPublisher, cfg.Business.PickupDeadline, cfg.Business.MaxPickupQuantity)
	orderService := service.NewOrderService(db, settler, reservationService, eventPublisher)
	bulkService := service.NewBulkService(db, orderService, redisClient, cfg.Business.BulkMaxItems, cfg.Business.BulkIdempotencyTTL)
	inventoryService := service.NewInventoryService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	rateConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRates, cfg.Kafka.ConsumerGroup)
	rateWorker := worker.NewRateWorker(rateConsumer, rateSync)
	go func() {
		if err := rateWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Rate worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(reservationService, orderService, bulkService, inventoryService, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := rateWorker.Stop(); err != nil {
		logger.Warn("Error stopping rate worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
