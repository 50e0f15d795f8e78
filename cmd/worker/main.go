package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/shipment-qna-assistant/internal/bootstrap"
	"github.com/kirillkom/shipment-qna-assistant/internal/config"
	"github.com/kirillkom/shipment-qna-assistant/internal/observability/logging"
	"github.com/kirillkom/shipment-qna-assistant/internal/observability/metrics"
)

const serviceName = "shipment-qna-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	prewarm := func(handlerCtx context.Context) error {
		workerMetrics.StartPrewarm()
		started := time.Now()
		fetchCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()
		_, err := app.Cache.EnsureToday(fetchCtx)
		workerMetrics.FinishPrewarm(serviceName, time.Since(started), err)
		return err
	}

	// Keep the snapshot warm even without pre-warm events, so the first
	// question of the day never pays the download.
	go func() {
		interval := time.Duration(cfg.WorkerRefreshIntervalS) * time.Second
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if err := prewarm(ctx); err != nil {
			slog.Error("dataset_refresh_failed", "error", err)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := prewarm(ctx); err != nil {
					slog.Error("dataset_refresh_failed", "error", err)
				}
			}
		}
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeDatasetPrewarm(ctx, func(handlerCtx context.Context, dateKey string) error {
		slog.Info("dataset_prewarm_event", "date_key", dateKey)
		return prewarm(handlerCtx)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
