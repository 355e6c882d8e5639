package main

import (
	"context"
	"time"

	"chitieu/internal/amqp"
	"chitieu/internal/backend"
	"chitieu/internal/cli"
	"chitieu/internal/worker"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinkResult, err := backend.NewFactory(logger).CreateSink(rootCtx, cfg)
	if err != nil {
		logger.Error("Failed to initialize export sink", "error", err, "sink", cfg.ExportSink)
		return
	}
	if sinkResult.Cleanup != nil {
		defer sinkResult.Cleanup()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		return
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(repo, sinkResult.Sink, cfg.SyncBatchSize)

	if err := syncWorker.StartupSyncCheck(rootCtx); err != nil {
		logger.Warn("Startup sync check failed", "error", err)
	}

	go func() {
		err := client.ConsumeEntrySync(rootCtx, func(msg *amqp.EntrySyncMessage) error {
			return syncWorker.HandleMessage(rootCtx, msg)
		})
		if err != nil && rootCtx.Err() == nil {
			logger.Error("AMQP consumer stopped", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.ProcessPending(rootCtx); err != nil {
					logger.Warn("Pending sync pass failed", "error", err)
				}
			}
		}
	}()

	logger.Info("Sync worker started",
		"sink", cfg.ExportSink,
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, cancel)
	cli.WaitForShutdown(ctx, done)
}
