package pipeline

import (
	"errors"
	"fmt"

	"voicecleaner/core/preset"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTimeout           = errors.New("stage timed out")
	ErrOutputTooLarge    = errors.New("output exceeds size limit")
	ErrReportFinalized   = errors.New("run report already finalized")
	ErrCancelled         = errors.New("cancelled")
)

// StageExecutionError is a failure of one stage on one file.
type StageExecutionError struct {
	Kind  preset.StageKind
	Cause error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Kind, e.Cause)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Cause
}

// PipelineError wraps the first stage failure of a file.
type PipelineError struct {
	File             string
	FailedStageIndex int // 1-based
	Cause            error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: stage %d failed: %v", e.File, e.FailedStageIndex, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// DiscoveryError means the input directory itself could not be listed.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
