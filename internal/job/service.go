package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/maauso/aaxsplit/internal/audio"
	"github.com/maauso/aaxsplit/internal/command"
	"github.com/maauso/aaxsplit/internal/media"
	"github.com/maauso/aaxsplit/internal/naming"
	"github.com/maauso/aaxsplit/internal/probe"
	"github.com/maauso/aaxsplit/internal/storage"
)

const (
	// MetadataFileName is the probe snapshot written into every book directory.
	MetadataFileName = "metadata.json"
	// LockFileName serializes workers whose books map to the same directory.
	LockFileName = ".aaxsplit.lock"

	lockRetryDelay = 250 * time.Millisecond
)

// ConvertService runs the conversion pipeline for one input file at a time.
// It is safe for concurrent use; each call owns its Job.
//
// Dependencies:
//   - probe.Prober: container metadata and chapters
//   - media.Processor: whole-book transcode and cover extraction
//   - audio.Splitter: chapter files
//   - storage.Storage: snapshot writes, cleanup and publishing
//   - Repository: job bookkeeping for the summary
type ConvertService struct {
	repo      Repository
	prober    probe.Prober
	processor media.Processor
	splitter  audio.Splitter
	storage   storage.Storage
	logger    *slog.Logger
	opts      Options
}

// ServiceOption configures a ConvertService.
type ServiceOption func(*ConvertService)

// WithOptions sets the per-run options.
func WithOptions(opts Options) ServiceOption {
	return func(s *ConvertService) {
		s.opts = opts
	}
}

// NewConvertService creates a new ConvertService.
func NewConvertService(
	repo Repository,
	prober probe.Prober,
	processor media.Processor,
	splitter audio.Splitter,
	store storage.Storage,
	logger *slog.Logger,
	opts ...ServiceOption,
) *ConvertService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConvertService{
		repo:      repo,
		prober:    prober,
		processor: processor,
		splitter:  splitter,
		storage:   store,
		logger:    logger,
		opts:      Options{Format: "mp3", Root: "Audiobooks"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options returns the per-run options.
func (s *ConvertService) Options() Options {
	return s.opts
}

// Process converts input and returns its finished Job. A failing stage
// ends the job FAILED and is also returned as a *StageError; the error
// never affects other inputs.
func (s *ConvertService) Process(ctx context.Context, seq int, input string) (*Job, error) {
	j := New(seq, input, s.opts.Format)
	logger := s.logger.With(
		slog.String("job_id", j.ID),
		slog.String("file", input),
	)

	if err := j.Start(); err != nil {
		return j, err
	}
	s.save(ctx, j, logger)

	note, skipped, err := s.run(ctx, j, logger)
	switch {
	case err != nil:
		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			stageErr = &StageError{Input: input, Stage: j.GetStage(), Err: err}
		}
		logger.Error("conversion failed",
			slog.String("stage", string(stageErr.Stage)),
			slog.String("error", stageErr.Err.Error()),
		)
		_ = j.Fail(stageErr.Error())
		s.save(ctx, j, logger)
		return j, stageErr
	case skipped:
		logger.Info("skipping", slog.String("reason", note))
		_ = j.Skip(note)
	default:
		j.Enter(StageDone)
		logger.Info("conversion finished",
			slog.Int("chapters", j.Chapters),
			slog.Duration("elapsed", j.Elapsed()),
		)
		_ = j.Complete(note)
	}
	s.save(ctx, j, logger)
	return j, nil
}

// run executes the stages in order. It returns a note for early stops,
// whether the file was skipped, and the first fatal error.
func (s *ConvertService) run(ctx context.Context, j *Job, logger *slog.Logger) (string, bool, error) {
	opts := s.opts
	fail := func(stage Stage, err error) (string, bool, error) {
		return "", false, &StageError{Input: j.Input, Stage: stage, Err: err}
	}

	format, err := media.Lookup(opts.Format)
	if err != nil {
		return fail(StageQueued, err)
	}

	j.Enter(StageProbe)
	meta, err := s.prober.Probe(ctx, opts.Secret, j.Input)
	if err != nil {
		return fail(StageProbe, err)
	}

	j.Enter(StageDestDir)
	dir, err := naming.DestDir(opts.Root, meta.Format.Tag("artist"), meta.Format.Tag("title"))
	if err != nil {
		return fail(StageDestDir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(StageDestDir, fmt.Errorf("create %s: %w", dir, err))
	}
	j.DestDir = dir
	logger = logger.With(slog.String("dest", dir))
	s.save(ctx, j, logger)

	j.Enter(StageLock)
	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fail(StageLock, err)
	}
	if !locked {
		return fail(StageLock, fmt.Errorf("could not lock %s", dir))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release lock", slog.String("error", err.Error()))
		}
	}()

	j.Enter(StageSnapshot)
	snapshot, err := meta.Snapshot()
	if err != nil {
		return fail(StageSnapshot, err)
	}
	if err := s.storage.SaveFile(ctx, filepath.Join(dir, MetadataFileName), bytes.NewReader(snapshot)); err != nil {
		return fail(StageSnapshot, err)
	}
	if opts.MetadataOnly {
		return "metadata only", false, nil
	}

	j.Enter(StageCover)
	cover := filepath.Join(dir, media.CoverFileName)
	err = s.processor.ExtractCover(ctx, media.CoverRequest{
		Secret:    opts.Secret,
		Input:     j.Input,
		Output:    cover,
		Overwrite: opts.Overwrite,
	})
	if err != nil {
		logger.Warn("no cover art", slog.String("error", err.Error()))
		cover = ""
	}
	j.Cover = cover
	if opts.CoverOnly {
		return "cover only", false, nil
	}

	j.Enter(StageCheck)
	done, err := naming.AlreadyProcessed(dir)
	if err != nil {
		return fail(StageCheck, err)
	}
	if done {
		return "already processed", true, nil
	}

	j.Enter(StageTranscode)
	intermediate := filepath.Join(dir, naming.IntermediateName(j.Input, format.Extension))
	j.Intermediate = intermediate
	s.save(ctx, j, logger)

	cuts := audio.Boundaries(audio.StrategyFor(format), meta)
	logger.Debug("chapter boundaries",
		slog.Int("chapters", len(meta.Chapters)),
		slog.Any("points", cuts.Points),
	)

	start := time.Now()
	outcome, err := s.processor.Transcode(ctx, media.TranscodeRequest{
		Secret:    opts.Secret,
		Input:     j.Input,
		Output:    intermediate,
		Format:    format.Name,
		Mono:      opts.Mono,
		Overwrite: opts.Overwrite,
		Meta:      meta,
	})
	if err != nil {
		return fail(StageTranscode, err)
	}
	if outcome == command.OutcomeDegraded {
		logger.Warn("progress display unavailable, transcoded without it")
	}
	logger.Debug("transcoded", slog.Duration("took", time.Since(start)))
	if opts.Single {
		return "single file", false, nil
	}

	j.Enter(StageSplit)
	result, err := s.splitter.Split(ctx, audio.Request{
		Source:    intermediate,
		DestDir:   dir,
		Format:    format,
		Meta:      meta,
		Cover:     cover,
		Overwrite: opts.Overwrite,
	})
	j.Chapters = result.Chapters
	if err != nil {
		return fail(StageSplit, err)
	}

	j.Enter(StageCleanup)
	note := s.cleanup(ctx, j, result, logger)

	if opts.Publish {
		j.Enter(StagePublish)
		if opts.DryRun {
			logger.Info("dry run, not publishing")
			return note, false, nil
		}
		prefix := path.Join(filepath.Base(filepath.Dir(dir)), filepath.Base(dir))
		urls, err := storage.Publish(ctx, s.storage, dir, prefix)
		j.Uploaded = len(urls)
		if err != nil {
			return fail(StagePublish, err)
		}
		logger.Info("published", slog.Int("files", len(urls)), slog.String("prefix", prefix))
	}
	return note, false, nil
}

// cleanup removes the intermediate after a successful split, including the
// no-op split of a book without chapters. It is kept when retention was
// requested or during a dry run.
func (s *ConvertService) cleanup(ctx context.Context, j *Job, result audio.Result, logger *slog.Logger) string {
	switch {
	case s.opts.DryRun:
		return ""
	case s.opts.Keep:
		logger.Debug("keeping intermediate", slog.String("path", j.Intermediate))
		return ""
	}
	if result.Chapters == 0 {
		logger.Warn("no chapters found, removing whole-book file", slog.String("path", j.Intermediate))
	}

	if err := s.storage.CleanupTemp(ctx, []string{j.Intermediate}); err != nil {
		logger.Warn("failed to remove intermediate", slog.String("error", err.Error()))
		return "intermediate not removed"
	}
	j.Intermediate = ""
	return ""
}

func (s *ConvertService) save(ctx context.Context, j *Job, logger *slog.Logger) {
	if err := s.repo.Save(ctx, j); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}
