package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maauso/aaxsplit/internal/bootstrap"
	"github.com/maauso/aaxsplit/internal/config"
	"github.com/maauso/aaxsplit/internal/deps"
	"github.com/maauso/aaxsplit/internal/media"
)

type cliFlags struct {
	configPath   string
	authCode     string
	format       string
	outputDir    string
	workers      int
	overwrite    bool
	coverOnly    bool
	mono         bool
	single       bool
	keep         bool
	dryRun       bool
	verbose      bool
	metadataOnly bool
	upload       bool
}

func newRootCommand() *cobra.Command {
	var flags cliFlags

	rootCmd := &cobra.Command{
		Use:           "aaxsplit [flags] FILE...",
		Short:         "Convert AAX audiobooks into per-chapter audio files",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			return convert(cmd.Context(), cmd.OutOrStdout(), cfg, args)
		},
	}

	flags.register(rootCmd.Flags())

	return rootCmd
}

// register binds the command-line flags to f.
func (c *cliFlags) register(f *pflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Configuration file path (default ~/.config/aaxsplit/config.toml)")
	f.StringVarP(&c.authCode, "authcode", "a", "", "Activation bytes used to decrypt the input")
	f.StringVarP(&c.format, "format", "f", "mp3", "Output format: "+strings.Join(media.Names(), ", "))
	f.StringVarP(&c.outputDir, "outputdir", "o", "Audiobooks", "Output directory")
	f.IntVarP(&c.workers, "processes", "p", 1, "Number of files converted in parallel")
	f.BoolVarP(&c.overwrite, "clobber", "c", false, "Overwrite existing files")
	f.BoolVarP(&c.coverOnly, "coverimage", "i", false, "Only extract the cover image")
	f.BoolVarP(&c.mono, "mono", "m", false, "Downmix to mono")
	f.BoolVarP(&c.single, "single", "s", false, "Do not split into chapters")
	f.BoolVarP(&c.keep, "keep", "k", false, "Keep the whole-book file after splitting")
	f.BoolVarP(&c.dryRun, "test", "t", false, "Print the commands instead of running them")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")
	f.BoolVarP(&c.metadataOnly, "extract-metadata", "x", false, "Only extract metadata")
	f.BoolVar(&c.upload, "upload", false, "Publish finished books to S3 (needs S3_BUCKET and S3_REGION)")
}

// loadConfig layers the flags that were actually given over the file and
// environment configuration, then resolves and validates the result.
func loadConfig(fs *pflag.FlagSet, flags *cliFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(fs, flags, cfg)

	if err := cfg.ResolveAuthCode(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, flags *cliFlags, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("authcode", func() { cfg.AuthCode = flags.authCode })
	set("format", func() { cfg.Format = flags.format })
	set("outputdir", func() { cfg.OutputDir = flags.outputDir })
	set("processes", func() { cfg.Workers = flags.workers })
	set("clobber", func() { cfg.Overwrite = flags.overwrite })
	set("coverimage", func() { cfg.CoverOnly = flags.coverOnly })
	set("mono", func() { cfg.Mono = flags.mono })
	set("single", func() { cfg.Single = flags.single })
	set("keep", func() { cfg.Keep = flags.keep })
	set("test", func() { cfg.DryRun = flags.dryRun })
	set("verbose", func() { cfg.Verbose = flags.verbose })
	set("extract-metadata", func() { cfg.MetadataOnly = flags.metadataOnly })
	set("upload", func() { cfg.Upload = flags.upload })
}

// convert checks the external tools, runs every input and writes the
// summary to out. Per-file failures are reported in the summary only.
func convert(ctx context.Context, out io.Writer, cfg *config.Config, inputs []string) error {
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	for _, s := range statuses {
		if !s.Available {
			logger.Error("missing dependency",
				slog.String("name", s.Name),
				slog.String("detail", s.Detail),
				slog.String("purpose", s.Description),
			)
		}
	}
	if err := deps.Verify(statuses); err != nil {
		return err
	}

	d, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	logger.Info("starting conversion",
		slog.Int("files", len(inputs)),
		slog.String("format", cfg.Format),
		slog.Int("workers", cfg.Workers),
		slog.Bool("dry_run", cfg.DryRun),
	)

	d.Dispatcher.Dispatch(ctx, inputs)

	// The run may have been interrupted; the summary still reports what finished.
	jobs, err := d.Repository.List(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if _, err := fmt.Fprintln(out, renderSummary(jobs)); err != nil {
		return err
	}
	return ctx.Err()
}
