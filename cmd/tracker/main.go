package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tracker/internal/backend"
	"tracker/internal/cache"
	"tracker/internal/cli"
	apphttp "tracker/internal/http"
	"tracker/internal/log"
	"tracker/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).
		CreateBackend(context.Background(), backendConfig)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize workbook source", err)
	}

	dashboard := services.NewDashboard(res.Loader, res.Location, cfg.SheetPolicy(), cfg.LoadTimeout, logger.Slog())
	exports := services.NewExportService(res.Audit, res.Publisher, logger.Slog())

	opts := apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}
	if res.Cache != nil {
		opts.Caches = []cache.Cleaner{res.Cache}
	}

	srv, err := apphttp.NewServer(opts, dashboard, exports)
	if err != nil {
		_ = res.Cleanup()
		cli.Fatal(logger, "Failed to create HTTP server", err)
	}

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 10*time.Second, func(ctx context.Context) error {
		return errors.Join(srv.Shutdown(ctx), res.Cleanup())
	})

	logger.Info("Starting server",
		"addr", srv.Addr,
		log.FieldBackend, dashboard.Backend(),
		log.FieldLocation, res.Location)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}
	cli.WaitForShutdown(ctx, done)
}
