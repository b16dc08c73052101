package job

import "context"

// Repository defines the interface for job bookkeeping during a run.
type Repository interface {
	// Save stores a snapshot of job, replacing any earlier one.
	Save(ctx context.Context, job *Job) error

	// List returns all jobs ordered by their input position.
	List(ctx context.Context) ([]*Job, error)
}
