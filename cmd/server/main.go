package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankcore/internal/account"
	"bankcore/internal/api"
	"bankcore/internal/config"
	"bankcore/internal/ledger"
	"bankcore/internal/outbox"
	"bankcore/internal/repository"
	"bankcore/internal/repository/memory"
	"bankcore/internal/repository/postgres"
	"bankcore/internal/service"
	"bankcore/pkg/crypto"
	"bankcore/pkg/metrics"

	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
)

const appName = "bankcore"

func main() {
	logger := setupLogger()
	cfg := config.Load()
	logger.Info("Starting application", slog.String("name", appName))

	store, db := setupStore(cfg, logger)

	metricsCollector := metrics.NewMetricsCollector(logger)
	signer := crypto.NewSigner(cfg.SigningSecret, logger)
	ledgerService := ledger.NewService(store, logger)
	accountService := account.NewService(store, logger)
	notificationService := setupNotificationService(logger)
	outboxProcessor := setupOutbox(cfg, db, logger)

	apiHandler := api.NewAPIHandler(ledgerService, accountService, notificationService, metricsCollector, signer, logger)
	metricsServer := metricsCollector.StartMetricsServer(cfg.MetricsAddr)
	httpServer := startHTTPServer(cfg.HTTPAddr, apiHandler, logger)

	waitForShutdown(logger, httpServer, metricsServer, notificationService, outboxProcessor)
	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func setupStore(cfg config.Config, logger *slog.Logger) (repository.LedgerStore, *sql.DB) {
	if cfg.DatabaseURL == "" {
		logger.Info("No DATABASE_URL set, using in-memory store")
		return memory.NewLedgerStore(), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("Invalid database URL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		logger.Error("Database not reachable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(db); err != nil {
		logger.Error("Schema bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Connected to Postgres")
	return postgres.NewLedgerStore(db), db
}

func setupNotificationService(logger *slog.Logger) *service.NotificationService {
	emailService := &service.MockEmailService{}
	smsService := &service.MockSMSService{}

	return service.NewNotificationService(emailService, smsService, 3, logger)
}

func setupOutbox(cfg config.Config, db *sql.DB, logger *slog.Logger) *outbox.Processor {
	if cfg.AMQPURL == "" || db == nil {
		return nil
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < 15; i++ {
		conn, err = amqp.Dial(cfg.AMQPURL)
		if err == nil {
			break
		}
		logger.Warn("RabbitMQ not reachable, retrying",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("Could not connect to RabbitMQ", slog.String("error", err.Error()))
		os.Exit(1)
	}

	processor, err := outbox.NewProcessor(db, conn, logger)
	if err != nil {
		logger.Error("Outbox init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	processor.Start()
	logger.Info("Outbox processor started")
	return processor
}

func startHTTPServer(addr string, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      api.RequestID(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	notificationService *service.NotificationService,
	outboxProcessor *outbox.Processor,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := notificationService.Shutdown(ctx); err != nil {
		logger.Error("Notification service shutdown failed", slog.String("error", err.Error()))
	}

	if outboxProcessor != nil {
		if err := outboxProcessor.Shutdown(ctx); err != nil {
			logger.Error("Outbox shutdown failed", slog.String("error", err.Error()))
		}
	}
}
