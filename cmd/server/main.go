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

	"shipment-consolidator/config"
	"shipment-consolidator/internal/api"
	"shipment-consolidator/internal/broker"
	"shipment-consolidator/internal/recordstore"
	"shipment-consolidator/internal/redisclient"
	"shipment-consolidator/internal/retry"
	"shipment-consolidator/internal/service"
	"shipment-consolidator/internal/store"
	"shipment-consolidator/internal/util"
	"shipment-consolidator/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shipment consolidator", zap.Int("sources", len(cfg.Sources)))

	tp, err := util.InitTracer("shipment-consolidator", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Failed to prepare database", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	requestProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRuns)
	defer requestProducer.Close()
	resultProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicResults)
	defer resultProducer.Close()
	eventPublisher := broker.NewEventPublisher(requestProducer, resultProducer)
	logger.Info("Kafka producers initialized")

	records := recordstore.NewClient(cfg.RecordStore.BaseURL, cfg.RecordStore.APIToken,
		cfg.RecordStore.RPS, cfg.RecordStore.Timeout, logger)
	policy := retry.Policy{
		MaxRetries: cfg.Engine.MaxRetries,
		BaseDelay:  cfg.Engine.BaseDelay,
		JitterMax:  cfg.Engine.JitterMax,
		Retryable:  recordstore.IsRetryable,
	}

	transformer := service.NewTransformer(service.DefaultMarketplaces(), cfg.Sources)
	for _, src := range cfg.Sources {
		if !transformer.Supports(src.Key) {
			logger.Warn("Source has no marketplace strategy",
				zap.String("source", src.Key),
				zap.String("marketplace", src.Marketplace))
		}
	}

	orchestrator := service.NewOrchestrator(
		service.NewSourceFetcher(records, transformer, policy),
		service.NewListingResolver(records, cfg.Engine.ListingStoreID, cfg.Sources, cfg.Engine.ChunkSize, policy),
		transformer,
		service.NewAddressValidator(),
		service.NewBatchWriter(records, cfg.Engine.InstructionStoreID, cfg.Engine.ChunkSize, cfg.Engine.WriteConcurrency, policy),
		db,
		service.Dependencies{
			Locker:    redisClient,
			Marker:    redisClient,
			Recorder:  db,
			Publisher: eventPublisher,
		},
		cfg.Sources,
		cfg.Engine,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	runConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRuns, cfg.Kafka.ConsumerGroup)
	runWorker := worker.NewRunWorker(runConsumer, orchestrator)
	go func() {
		if err := runWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Run worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orchestrator, eventPublisher, db, map[string]api.ReadyCheck{
		"database": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
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
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := runWorker.Stop(); err != nil {
		logger.Error("Failed to stop run worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
