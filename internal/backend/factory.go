// Package backend assembles the workbook loader chain and the export sinks
// from configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracker/internal/amqp"
	"tracker/internal/cache"
	"tracker/internal/core"
	"tracker/internal/source"
	"tracker/internal/source/google"
	"tracker/internal/source/local"
	"tracker/internal/source/remote"
	"tracker/internal/storage"
)

const workbookCacheSize = 16

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds base loader → retry → cache, and opens the audit
// store and AMQP publisher when configured. An unreachable broker is logged
// and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base, err := f.createLoader(ctx, config)
	if err != nil {
		return nil, err
	}

	result := &Result{Location: config.Location}
	var loader source.Loader = base
	if config.Retries > 0 {
		loader = source.NewRetrying(loader, source.RetryPolicy{Retries: config.Retries}, f.logger)
	}
	if config.CacheTTL > 0 {
		result.Cache = cache.NewLRUCache[core.Workbook](workbookCacheSize, config.CacheTTL)
		loader = source.NewCached(loader, result.Cache, f.logger)
	}
	result.Loader = loader

	var closers []func() error
	if config.AuditDBPath != "" {
		repo, err := storage.NewSQLiteRepository(config.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize export audit store: %w", err)
		}
		result.Audit = repo
		closers = append(closers, repo.Close)
		f.logger.Info("Initialized export audit store", "db_path", config.AuditDBPath)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without export events", "error", err)
		} else {
			result.Publisher = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized workbook source",
		"backend", loader.Describe(),
		"retries", config.Retries,
		"cache_ttl", config.CacheTTL,
		"audit_enabled", result.Audit != nil,
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createLoader(ctx context.Context, config Config) (source.Loader, error) {
	switch config.Type {
	case LocalBackend:
		return local.New(config.MaxBytes, f.logger), nil
	case RemoteBackend:
		return remote.New(config.LoadTimeout,
			remote.WithMaxBytes(config.MaxBytes),
			remote.WithLogger(f.logger)), nil
	case GoogleBackend:
		client, err := google.New(ctx, google.Credentials{
			JSON: config.GoogleServiceAccountJSON,
			File: config.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
