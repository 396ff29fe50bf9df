package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"keuangan/internal/backend"
	"keuangan/internal/cli"
	apphttp "keuangan/internal/http"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
	"keuangan/internal/metrics"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", applog.FieldError, err, applog.FieldBackend, cfg.Backend)
		os.Exit(1)
	}

	reg := metrics.New()
	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithRecorder(reg),
	}
	if res.Publisher != nil {
		opts = append(opts, ledger.WithPublisher(res.Publisher))
	}
	engine := ledger.New(res.Store, opts...)

	// An unreadable store is not fatal; a failed normalization write leaves
	// the engine dirty and /readyz reports it.
	if _, err := engine.Load(context.Background()); err != nil {
		logger.Warn("Ledger loaded but not persisted", applog.FieldError, err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, engine, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Metrics:            reg,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := engine.Flush(ctx); err != nil {
			logger.Error("Final ledger flush failed", applog.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	})

	logger.Info("Starting keuangan server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.Backend,
		"amqp_enabled", res.Publisher != nil,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
