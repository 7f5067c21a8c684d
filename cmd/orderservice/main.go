package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baechuer/orderflow/internal/config"
	"github.com/baechuer/orderflow/internal/logger"
	"github.com/baechuer/orderflow/internal/metrics"
	"github.com/baechuer/orderflow/internal/orders"
	"github.com/baechuer/orderflow/internal/outbox"
	"github.com/baechuer/orderflow/internal/storage/postgres"
	"github.com/baechuer/orderflow/internal/tracing"
	"github.com/baechuer/orderflow/internal/transport/http/handlers"
	"github.com/baechuer/orderflow/internal/transport/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Logger

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required to start the service")
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OtelExporterEndpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracer setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	m := metrics.New()
	outboxRepo := outbox.NewRepository(db)

	var sink outbox.Sink
	if cfg.RabbitURL != "" {
		amqpSink, err := outbox.NewAMQPSink(cfg.RabbitURL, "")
		if err != nil {
			log.Fatal().Err(err).Msg("amqp sink init failed")
		}
		defer amqpSink.Close()
		sink = amqpSink
	} else {
		sink = outbox.NewLogSink(log)
	}

	dispatcher := outbox.NewDispatcher(db, outboxRepo, sink, log, m, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Run(ctx)

	orderSvc := orders.NewService(db, outboxRepo, m)
	ordersHandler := handlers.NewOrdersHandler(orderSvc)
	healthHandler := handlers.NewHealthHandler(db)

	httpHandler := router.New(ordersHandler, healthHandler, m, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:      httpHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.ServicePort).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
