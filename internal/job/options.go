package job

import (
	"github.com/maauso/aaxsplit/internal/config"
	"github.com/maauso/aaxsplit/internal/naming"
)

// Options are the per-run settings shared by every file. They are copied
// from the configuration once and never change during a run.
type Options struct {
	// Secret is the activation secret passed to every decrypting tool.
	Secret string
	Format string
	// Root is the output root, already suffixed for mono output.
	Root         string
	Mono         bool
	Keep         bool
	Overwrite    bool
	DryRun       bool
	Single       bool
	MetadataOnly bool
	CoverOnly    bool
	// Publish uploads the finished book directory to object storage.
	Publish bool
}

// NewOptions derives Options from a validated configuration.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Secret:       cfg.AuthCode,
		Format:       cfg.Format,
		Root:         naming.OutputRoot(cfg.OutputDir, cfg.Mono),
		Mono:         cfg.Mono,
		Keep:         cfg.Keep,
		Overwrite:    cfg.Overwrite,
		DryRun:       cfg.DryRun,
		Single:       cfg.Single,
		MetadataOnly: cfg.MetadataOnly,
		CoverOnly:    cfg.CoverOnly,
		Publish:      cfg.Upload && cfg.S3Enabled(),
	}
}
