// Package bootstrap provides dependency initialization for audimeta-splitter.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/audimeta-splitter/internal/audimeta"
	"github.com/maauso/audimeta-splitter/internal/audio"
	"github.com/maauso/audimeta-splitter/internal/cache"
	"github.com/maauso/audimeta-splitter/internal/config"
	"github.com/maauso/audimeta-splitter/internal/job"
	"github.com/maauso/audimeta-splitter/internal/storage"
)

// Options are per-invocation switches that override configuration.
type Options struct {
	// NoCache bypasses the chapter cache even when CACHE_DIR is set.
	NoCache bool
}

// Dependencies holds all initialized dependencies for the CLI.
type Dependencies struct {
	// Client talks to AudiMeta directly.
	Client *audimeta.Client
	// Metadata is the client, wrapped by the cache when one is configured.
	Metadata job.Metadata
	// Tool drives ffmpeg and ffprobe.
	Tool *audio.FFmpegTool
	// Storage provides run work directories and publishing.
	Storage storage.Storage
	// SplitService runs the split pipeline.
	SplitService *job.SplitService

	closers []func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize AudiMeta client
	deps.Client = audimeta.NewClient(
		audimeta.WithBaseURL(cfg.AudiMetaBaseURL),
		audimeta.WithRegion(cfg.AudiMetaRegion),
		audimeta.WithTimeout(cfg.HTTPTimeout),
		audimeta.WithRateLimit(cfg.AudiMetaRPS, audimeta.DefaultBurst),
		audimeta.WithLogger(logger),
	)
	deps.Metadata = deps.Client

	// Wrap it with the chapter cache when configured
	if cfg.CacheEnabled() && !opts.NoCache {
		store, err := cache.Open(cfg.CacheDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)
		deps.Metadata = cache.NewSource(deps.Client, store, cfg.CacheTTL, logger)
		logger.Debug("chapter cache enabled",
			slog.String("dir", cfg.CacheDir),
			slog.Duration("ttl", cfg.CacheTTL),
		)
	}

	// Initialize ffmpeg tool
	deps.Tool = audio.NewFFmpegTool(
		audio.WithFFmpegPath(cfg.FFmpegPath),
		audio.WithFFprobePath(cfg.FFprobePath),
		audio.WithTimeout(cfg.ToolTimeout),
		audio.WithLogger(logger),
	)

	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Storage = store

	// Initialize SplitService
	svc := job.NewSplitService(deps.Metadata, deps.Tool, store, logger)
	svc.SetConcurrency(cfg.MaxConcurrentExports)
	svc.SetPublishPrefix(cfg.S3Prefix)
	deps.SplitService = svc

	return deps, nil
}

// Close releases resources such as the cache database.
func (d *Dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Debug("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
