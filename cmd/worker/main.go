package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corpusqa/corpusqa/internal/bootstrap"
	"github.com/corpusqa/corpusqa/internal/config"
	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/observability/logging"
	"github.com/corpusqa/corpusqa/internal/observability/metrics"
)

const persistTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker consuming answer records", "subject", cfg.AnswersSubject)
	err = app.Queue.SubscribeAnswers(ctx, func(handlerCtx context.Context, record domain.AnswerRecord) error {
		persistCtx, cancel := context.WithTimeout(handlerCtx, persistTimeout)
		defer cancel()

		workerMetrics.StartRecord()
		started := time.Now()
		insertErr := app.QueryLog.Insert(persistCtx, record)
		workerMetrics.FinishRecord("worker", time.Since(started), insertErr)
		if insertErr == nil {
			workerMetrics.ObserveQueueLag("worker", time.Since(record.CreatedAt))
		}
		return insertErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
