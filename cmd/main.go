package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/api"
	"github.com/lapakgo/payment-reconciler/internal/config"
	"github.com/lapakgo/payment-reconciler/internal/handlers"
	"github.com/lapakgo/payment-reconciler/internal/repository"
	"github.com/lapakgo/payment-reconciler/internal/service"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if err := telemetry.InitTelemetry("payment-reconciler"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Payment Reconciler")

	if cfg.WebhookSecret == "" {
		telemetry.Logger.Fatal("WEBHOOK_SECRET must be set")
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitDB(db); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	orderRepo := repository.NewOrderRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	productRepo := repository.NewProductRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	locker := service.NewRedisOrderLocker(redisClient)
	flags := service.NewRedisFallbackFlags(redisClient)

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()
	notifier := service.NewNatsNotifier(nc)

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "order.state.changed",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()
	publisher := service.NewKafkaStatePublisher(kafkaWriter)

	// Wire the pipeline
	stateMachine := service.NewStateMachine(orderRepo, locker, publisher, flags)
	supervisor := service.NewSupervisor(orderRepo, flags, stateMachine, cfg.WaitWindow, cfg.ManualFallbackAfter)
	stateMachine.AttachTimers(supervisor)

	fulfillment := service.NewFulfillment(conversationRepo, notificationRepo, notifier)
	reconciler := service.NewReconciler(orderRepo, ledgerRepo, reviewRepo, stateMachine, fulfillment)
	orderService := service.NewOrderService(orderRepo, productRepo, reviewRepo, flags, supervisor, cfg.WaitWindow)
	adminService := service.NewAdminService(orderRepo, reviewRepo, stateMachine, fulfillment)

	// Re-arm timers for orders that were pending when the process last died
	if err := supervisor.Resume(context.Background()); err != nil {
		telemetry.Logger.Fatal("Failed to resume pending orders", zap.Error(err))
	}

	r := api.NewRouter(
		handlers.NewWebhookHandler(cfg.WebhookSecret, reconciler),
		handlers.NewOrderHandler(orderService),
		handlers.NewAdminHandler(adminService, supervisor, cfg.StaleSweepThreshold),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		telemetry.Logger.Info("Payment Reconciler starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
