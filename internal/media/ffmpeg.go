package media

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/maauso/aaxsplit/internal/command"
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	runner     command.Runner
	progress   *command.ProgressRunner
	reporters  command.ReporterFactory
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithReporters shows transcode progress through reporters.
func WithReporters(reporters command.ReporterFactory) Option {
	return func(p *FFmpegProcessor) {
		p.reporters = reporters
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, runner command.Runner, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		progress:   command.NewProgressRunner(runner),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transcode implements Processor.
func (p *FFmpegProcessor) Transcode(ctx context.Context, req TranscodeRequest) (command.Outcome, error) {
	inv, err := BuildTranscode(p.ffmpegPath, req)
	if err != nil {
		return command.OutcomePlain, err
	}

	if req.Overwrite {
		if err := p.removeExisting(req.Output); err != nil {
			return command.OutcomePlain, err
		}
	}

	var reporter command.Reporter
	if p.reporters != nil {
		reporter = p.reporters("Transcoding " + req.Meta.Format.Tag("title"))
	}

	outcome, err := p.progress.Run(ctx, inv, req.Meta.Format.Duration, reporter)
	if err != nil {
		return outcome, fmt.Errorf("transcode %s: %w", req.Input, err)
	}
	return outcome, nil
}

// ExtractCover implements Processor. An existing cover is reused unless
// req.Overwrite is set.
func (p *FFmpegProcessor) ExtractCover(ctx context.Context, req CoverRequest) error {
	if _, err := os.Stat(req.Output); err == nil {
		if !req.Overwrite {
			return nil
		}
		if err := p.removeExisting(req.Output); err != nil {
			return fmt.Errorf("%w: %w", ErrCoverExtraction, err)
		}
	}

	if err := p.runner.Run(ctx, BuildCoverExtract(p.ffmpegPath, req)); err != nil {
		return fmt.Errorf("%w: %w", ErrCoverExtraction, err)
	}
	return nil
}

// removeExisting deletes path so ffmpeg's -n does not refuse to write it.
// Nothing is removed during a dry run.
func (p *FFmpegProcessor) removeExisting(path string) error {
	if command.IsDryRun(p.runner) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing %s: %w", path, err)
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)
