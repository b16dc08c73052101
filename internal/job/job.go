// Package job provides the conversion Job aggregate, the per-file conversion
// pipeline and the dispatcher that runs it across many input files.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/aaxsplit/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the file is waiting for a worker.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates a worker is converting the file.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every requested stage finished.
	StatusCompleted Status = "COMPLETED"
	// StatusSkipped indicates the destination already held chapter outputs.
	StatusSkipped Status = "SKIPPED"
	// StatusFailed indicates a stage failed. Error names the stage.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusSkipped, StatusFailed},
	StatusCompleted: {},
	StatusSkipped:   {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is the run state of converting one input file. It is owned by a
// single worker; the repository only ever holds clones.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Seq is the position of the input on the command line, starting at 1.
	Seq int
	// Input is the path of the source file.
	Input string
	// Format is the output format name.
	Format string
	// Status is the current job state.
	Status Status
	// Stage is the pipeline stage last entered.
	Stage Stage
	// DestDir is the book directory, empty until it has been derived.
	DestDir string
	// Intermediate is the whole-book transcoded file.
	Intermediate string
	// Cover is the extracted cover image, empty when none is available.
	Cover string
	// Chapters is the number of chapters split out.
	Chapters int
	// Uploaded is the number of files published to object storage.
	Uploaded int
	// Note carries a short human explanation for skipped or partial runs.
	Note string
	// Error contains the diagnostic if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job for input with a generated ID and IN_QUEUE status.
func New(seq int, input, format string) *Job {
	return NewWithID(id.Generate(), seq, input, format)
}

// NewWithID creates a new Job with the specified ID and IN_QUEUE status.
func NewWithID(jobID string, seq int, input, format string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Seq:       seq,
		Input:     input,
		Format:    format,
		Status:    StatusInQueue,
		Stage:     StageQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusSkipped, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED. note may be empty.
func (j *Job) Complete(note string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Note = note
	return j.transitionLocked(StatusCompleted)
}

// Skip transitions the job to SKIPPED with the reason in Note.
func (j *Job) Skip(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Note = reason
	return j.transitionLocked(StatusSkipped)
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = errMsg
	return j.transitionLocked(StatusFailed)
}

// Enter records that the pipeline moved to stage.
func (j *Job) Enter(stage Stage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// GetStage returns the current pipeline stage (thread-safe).
func (j *Job) GetStage() Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusSkipped ||
		j.Status == StatusFailed
}

// Elapsed returns how long the job ran, or zero if it never started.
func (j *Job) Elapsed() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(j.StartedAt)
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		Seq:          j.Seq,
		Input:        j.Input,
		Format:       j.Format,
		Status:       j.Status,
		Stage:        j.Stage,
		DestDir:      j.DestDir,
		Intermediate: j.Intermediate,
		Cover:        j.Cover,
		Chapters:     j.Chapters,
		Uploaded:     j.Uploaded,
		Note:         j.Note,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
