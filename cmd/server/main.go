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

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service")

	tp, err := util.InitTracer("inventory-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	snapshotStore, err := newSnapshotStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize snapshot store: %v", err)
	}
	log.Printf("Snapshot store initialized: %s", cfg.Storage.Backend)

	auditSink, err := newAuditSink(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize audit sink: %v", err)
	}
	log.Printf("Audit sink initialized: %s", cfg.Audit.Backend)

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	inventoryService := service.NewInventoryService(snapshotStore, auditSink, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments, cfg.Kafka.ConsumerGroup)
	paymentWorker := worker.NewPaymentWorker(paymentConsumer, inventoryService)
	go func() {
		if err := paymentWorker.Start(workerCtx); err != nil {
			log.Printf("Payment worker error: %v", err)
		}
	}()

	expiryWorker := worker.NewExpiryWorker(inventoryService,
		time.Duration(cfg.Business.SweepIntervalSeconds)*time.Second)
	go func() {
		if err := expiryWorker.Start(workerCtx); err != nil {
			log.Printf("Expiry worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(inventoryService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	paymentWorker.Stop()

	log.Println("Server exited")
}

// newSnapshotStore builds the configured snapshot backend wrapped with the
// bounded retry policy.
func newSnapshotStore(cfg *config.Config) (store.SnapshotStore, error) {
	policy := store.RetryPolicy{
		MaxAttempts: cfg.Storage.RetryAttempts,
		BaseDelay:   time.Duration(cfg.Storage.RetryBaseMs) * time.Millisecond,
	}

	switch cfg.Storage.Backend {
	case "redis":
		rs, err := store.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword,
			cfg.Storage.RedisDB, cfg.Storage.RedisKey)
		if err != nil {
			return nil, err
		}
		return store.NewRetryingStore(rs, policy), nil
	default:
		fs, err := store.NewFileStore(cfg.Storage.SnapshotPath)
		if err != nil {
			return nil, err
		}
		return store.NewRetryingStore(fs, policy), nil
	}
}

// newAuditSink builds the configured audit backend.
func newAuditSink(cfg *config.Config) (store.AuditSink, error) {
	switch cfg.Audit.Backend {
	case "postgres":
		return store.NewPostgresAuditSink(cfg.Audit.DatabaseURL)
	default:
		return store.NewFileAuditSink(cfg.Audit.LogPath)
	}
}
