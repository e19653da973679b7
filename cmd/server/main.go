package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/RentalOrderService/internal/api"
	"github.com/honeynil/RentalOrderService/internal/config"
	"github.com/honeynil/RentalOrderService/internal/handler"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/kafka"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/mailer"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/payment"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/redis"
	"github.com/honeynil/RentalOrderService/internal/jobs"
	"github.com/honeynil/RentalOrderService/internal/migrations"
	"github.com/honeynil/RentalOrderService/internal/observability"
	core "github.com/honeynil/RentalOrderService/internal/repository/postgres"
	service "github.com/honeynil/RentalOrderService/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем логи, метрики, трейсы
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	shutdown := observability.Setup(ctx, "rental-order-service", cfg)
	defer shutdown(context.Background())

	// Подключаемся к Postgres
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, db); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	deps := service.Dependencies{
		Rentals:      core.NewPostgresRentalRepository(db),
		Transactions: core.NewPostgresTransactionRepository(db),
		Appointments: core.NewPostgresAppointmentRepository(db),
		Users:        core.NewPostgresUserRepository(db),
		Vehicles:     core.NewPostgresVehicleRepository(db),
		Gateway:      payment.NewClient(cfg.Payment),
	}

	checks := map[string]api.HealthCheck{"postgres": db.PingContext}

	// Redis необязателен: без него повторные проверки идут в шлюз
	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Warn("running without verification cache", "error", err)
	} else {
		defer redisClient.Close()
		deps.Cache = redisClient
		checks["redis"] = redisClient.Ping
	}

	mail := mailer.NewSendGridMailer(cfg.SendGrid, "")
	deps.Notifier = mail

	// Kafka: события статусов и очередь уведомлений
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		deps.Events = kafka.NewEventPublisher(producer, cfg.Kafka.EventsTopic)
		deps.Notifier = kafka.NewNotificationPublisher(producer, cfg.Kafka.NotificationsTopic)

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, cfg.Kafka.GroupID, mail)
		defer consumer.Close()
		go consumer.Consume(ctx)
	}

	svc := service.NewOrderService(deps, service.Options{
		InitiateTimeout: cfg.Payment.InitiateTimeout,
		LookupTimeout:   cfg.Payment.LookupTimeout,
	})

	scheduler, err := jobs.NewScheduler(svc, cfg.Reconciler)
	if err != nil {
		slog.Error("failed to schedule reconciler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Настраиваем роутер
	router := api.SetupRouter(handler.NewHandler(svc), cfg.JWTSecret, checks)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		slog.Error("reconciler shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
