package job

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// FileProcessor converts a single input file.
type FileProcessor interface {
	Process(ctx context.Context, seq int, input string) (*Job, error)
}

// Compile-time check that ConvertService implements FileProcessor.
var _ FileProcessor = (*ConvertService)(nil)

// Dispatcher runs a FileProcessor over a batch of inputs with a bounded
// number of workers.
type Dispatcher struct {
	processor FileProcessor
	repo      Repository
	workers   int
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. Fewer than one worker means one.
func NewDispatcher(processor FileProcessor, repo Repository, workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		processor: processor,
		repo:      repo,
		workers:   workers,
		logger:    logger,
	}
}

// Dispatch processes every input and returns their jobs in input order.
// A failing or panicking file never stops the others. With one worker the
// files run sequentially on the calling goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, inputs []string) []*Job {
	jobs := make([]*Job, len(inputs))

	if d.workers == 1 {
		for i, input := range inputs {
			jobs[i] = d.processOne(ctx, i+1, input)
		}
		return jobs
	}

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, input := range inputs {
		g.Go(func() error {
			jobs[i] = d.processOne(ctx, i+1, input)
			return nil
		})
	}
	_ = g.Wait()
	return jobs
}

func (d *Dispatcher) processOne(ctx context.Context, seq int, input string) (j *Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker panic",
				slog.String("file", input),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			j = d.crashed(ctx, seq, input, r)
		}
	}()

	j, err := d.processor.Process(ctx, seq, input)
	if err != nil {
		d.logger.Debug("file failed", slog.String("file", input), slog.String("error", err.Error()))
	}
	switch {
	case j == nil:
		j = New(seq, input, "")
		msg := "no result"
		if err != nil {
			msg = err.Error()
		}
		_ = j.Fail(msg)
		d.record(ctx, j)
	case !j.IsTerminal():
		// Every dispatched job ends terminal.
		_ = j.Fail(fmt.Sprintf("processing ended in %s status", j.GetStatus()))
		d.record(ctx, j)
	}
	return j
}

// crashed turns a recovered panic into a failed job.
func (d *Dispatcher) crashed(ctx context.Context, seq int, input string, r any) *Job {
	j := New(seq, input, "")
	stageErr := &StageError{Input: input, Stage: j.GetStage(), Err: fmt.Errorf("panic: %v", r)}
	_ = j.Fail(stageErr.Error())
	d.record(ctx, j)
	return j
}

func (d *Dispatcher) record(ctx context.Context, j *Job) {
	if d.repo == nil {
		return
	}
	if err := d.repo.Save(ctx, j); err != nil {
		d.logger.Error("failed to save job", slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}
}
