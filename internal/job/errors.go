package job

import (
	"fmt"
	"path/filepath"
)

// Stage names a step of the per-file pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageQueued    Stage = "queued"
	StageProbe     Stage = "probe"
	StageDestDir   Stage = "destination"
	StageLock      Stage = "lock"
	StageSnapshot  Stage = "snapshot"
	StageCover     Stage = "cover"
	StageCheck     Stage = "already-processed"
	StageTranscode Stage = "transcode"
	StageSplit     Stage = "split"
	StageCleanup   Stage = "cleanup"
	StagePublish   Stage = "publish"
	StageDone      Stage = "done"
)

// StageError reports which stage of which input failed.
type StageError struct {
	Input string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", filepath.Base(e.Input), e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
