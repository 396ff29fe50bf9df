package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"keuangan/internal/amqp"
	"keuangan/internal/backend"
	"keuangan/internal/cli"
	applog "keuangan/internal/log"
	"keuangan/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)

	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)

	// The worker only reads the primary store, so it must not publish.
	primaryCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid primary backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	primaryCfg.AMQPURL = ""
	primary, err := factory.CreateBackend(context.Background(), primaryCfg)
	if err != nil {
		logger.Error("Failed to open primary store", applog.FieldError, err)
		os.Exit(1)
	}
	defer primary.Cleanup()

	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirror, err := factory.CreateBackend(context.Background(), mirrorCfg)
	if err != nil {
		logger.Error("Failed to open mirror store", applog.FieldError, err)
		os.Exit(1)
	}
	defer mirror.Cleanup()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(primary.Store, mirror.Store, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	logger.Info("Starting keuangan-worker",
		applog.FieldBackend, cfg.Backend,
		"mirror_backend", cfg.MirrorBackend,
		"interval", cfg.MirrorInterval.String(),
		applog.FieldOperation, applog.OpStartup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeChanges(gctx, mirrorWorker.HandleChangeMessage)
	})
	g.Go(func() error {
		return mirrorWorker.Run(gctx, cfg.MirrorInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	synced, last := mirrorWorker.Stats()
	logger.Info("Worker stopped gracefully", "syncs", synced, "last_sync", last)
}
