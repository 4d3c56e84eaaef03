package model

import (
	"errors"
	"fmt"
)

// JobStatus is the lifecycle state of one input file in a batch.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSkipped   JobStatus = "skipped"
)

// ErrStatusRegression is returned when a terminal job is moved to another status.
var ErrStatusRegression = errors.New("job status cannot leave a terminal state")

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusSkipped:
		return true
	default:
		return false
	}
}

// FileJob tracks one input file while its pipeline runs.
type FileJob struct {
	ID         string        `json:"id"`
	Input      MediaHandle   `json:"input"`
	StageIndex int           `json:"stageIndex"` // Number of stages completed so far
	Outputs    []MediaHandle `json:"outputs"`
	Status     JobStatus     `json:"status"`
}

// NewFileJob creates a pending job for input.
func NewFileJob(id string, input MediaHandle) *FileJob {
	return &FileJob{
		ID:     id,
		Input:  input,
		Status: JobStatusPending,
	}
}

// Transition moves the job to status, refusing to leave a terminal state.
func (j *FileJob) Transition(status JobStatus) error {
	if j.Status == status {
		return nil
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegression, j.Status, status)
	}
	j.Status = status
	return nil
}

// CompleteStage records the output of the next stage.
func (j *FileJob) CompleteStage(out MediaHandle) {
	j.StageIndex++
	j.Outputs = append(j.Outputs, out)
}
