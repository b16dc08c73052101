// Package bootstrap builds the converter's dependency graph from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/maauso/aaxsplit/internal/audio"
	"github.com/maauso/aaxsplit/internal/command"
	"github.com/maauso/aaxsplit/internal/config"
	"github.com/maauso/aaxsplit/internal/job"
	"github.com/maauso/aaxsplit/internal/media"
	"github.com/maauso/aaxsplit/internal/probe"
	"github.com/maauso/aaxsplit/internal/storage"
)

// Dependencies holds all initialized dependencies for a conversion run.
type Dependencies struct {
	Service    *job.ConvertService
	Dispatcher *job.Dispatcher
	Repository job.Repository
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var execOpts []command.ExecOption
	if cfg.Verbose {
		execOpts = append(execOpts, command.WithStderr(os.Stderr))
	}
	execRunner := command.NewExecRunner(execOpts...)

	// Probing only reads, so it runs for real even in a dry run.
	prober := probe.NewFFprobe(cfg.FFprobePath, execRunner)

	var toolRunner command.Runner = execRunner
	if cfg.DryRun {
		toolRunner = command.NewDryRunner(logger)
	}

	var reporters command.ReporterFactory
	if cfg.ShowProgress() {
		reporters = command.BarFactory(os.Stderr)
	}

	var mediaOpts []media.Option
	if reporters != nil {
		mediaOpts = append(mediaOpts, media.WithReporters(reporters))
	}
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, toolRunner, mediaOpts...)

	splitter := audio.NewChapterSplitter(
		audio.NewFFmpegSplitter(cfg.FFmpegPath, toolRunner, reporters),
		audio.NewMp3spltSplitter(cfg.Mp3spltPath, toolRunner),
	)

	repo := job.NewMemoryRepository()

	svc := job.NewConvertService(
		repo,
		prober,
		processor,
		splitter,
		store,
		logger,
		job.WithOptions(job.NewOptions(cfg)),
	)

	return &Dependencies{
		Service:    svc,
		Dispatcher: job.NewDispatcher(svc, repo, cfg.Workers, logger),
		Repository: repo,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
// S3 is only set up when publishing was requested.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.Upload && cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	if cfg.Upload {
		logger.Warn("upload requested but S3_BUCKET and S3_REGION are not both set; publishing disabled")
	}
	return storage.NewLocalStorage(), nil
}
