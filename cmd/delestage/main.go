package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/mirado-dev/delestage/internal/adapter/http"
	kafkaadapter "github.com/mirado-dev/delestage/internal/adapter/kafka"
	"github.com/mirado-dev/delestage/internal/adapter/sqlite"
	"github.com/mirado-dev/delestage/internal/config"
	"github.com/mirado-dev/delestage/internal/observability"
	"github.com/mirado-dev/delestage/internal/scheduling"
	"github.com/mirado-dev/delestage/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SeedOnStart {
		if err := seed.Run(ctx, store, logger); err != nil {
			logger.Error("seed failed", "error", err)
			os.Exit(1)
		}
	}

	// Change feed is feature-flagged via KAFKA_ENABLED.
	var publisher scheduling.EventPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("outage change feed enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("outage change feed disabled")
	}

	svc := scheduling.New(store, publisher, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, store, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
