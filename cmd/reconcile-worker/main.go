package main

import (
	"context"
	"errors"
	"os"
	"time"

	"eventfees/internal/amqp"
	"eventfees/internal/cli"
	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting reconcile-worker", log.FieldOperation, log.OpStartup)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the reconcile worker",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	be := cli.InitBackend(context.Background(), logger, cfg)
	m, _ := cli.NewMetrics(cfg)
	reconciler := cli.BuildReconciler(cfg, be.Backend, m, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPSettlementQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}

	recomputeWorker := worker.NewRecomputeWorker(reconciler, amqpClient, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		amqpClient.Close()
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err.Error())
			}
		}
	})

	sweepEvents := make([]core.EventID, 0, len(cfg.SweepEventIDs))
	for _, id := range cfg.SweepEventIDs {
		sweepEvents = append(sweepEvents, core.EventID(id))
	}

	// On startup, rebroadcast settlement for swept events in case messages were missed
	if len(sweepEvents) > 0 {
		logger.Info("Performing startup settlement sweep", log.FieldCount, len(sweepEvents))
		recomputeWorker.Sweep(ctx, sweepEvents)

		go func() {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					recomputeWorker.Sweep(ctx, sweepEvents)
				}
			}
		}()
	}

	go func() {
		if err := amqpClient.ConsumeRecompute(ctx, recomputeWorker.HandleRecompute); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err.Error())
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
