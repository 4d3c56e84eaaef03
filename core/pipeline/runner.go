package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voicecleaner/core/preset"
	"voicecleaner/logger"
	"voicecleaner/model"
)

// Runner chains the stages of a preset for one file and owns the
// intermediate artifacts produced along the way.
type Runner struct {
	exec    *StageExecutor
	workDir string
}

// NewRunner creates a runner that keeps scratch files under workDir
// (the OS temp dir when empty).
func NewRunner(exec *StageExecutor, workDir string) *Runner {
	return &Runner{exec: exec, workDir: workDir}
}

// Result is the final artifact of a successful pipeline. The caller must
// call Cleanup once the artifact has been moved or copied elsewhere.
type Result struct {
	Output     model.MediaHandle
	Stages     int
	Elapsed    time.Duration
	scratchDir string
}

// Cleanup removes the scratch directory and anything left in it.
func (r *Result) Cleanup() error {
	if r == nil || r.scratchDir == "" {
		return nil
	}
	err := os.RemoveAll(r.scratchDir)
	r.scratchDir = ""
	return err
}

// Process runs every stage of p in order; stage i+1 consumes exactly the
// output of stage i. On failure all intermediates are deleted and a
// *PipelineError carrying the 1-based failed stage index is returned.
func (r *Runner) Process(ctx context.Context, p preset.Preset, in model.MediaHandle) (*Result, error) {
	return r.process(ctx, p, in, nil)
}

// ProcessJob is Process with progress tracked on job. The job is left
// running on success so the caller can mark it succeeded after placing
// the output, and is marked failed on error.
func (r *Runner) ProcessJob(ctx context.Context, p preset.Preset, job *model.FileJob) (*Result, error) {
	if err := job.Transition(model.JobStatusRunning); err != nil {
		return nil, err
	}
	res, err := r.process(ctx, p, job.Input, job.CompleteStage)
	if err != nil {
		job.Transition(model.JobStatusFailed)
		return nil, err
	}
	return res, nil
}

func (r *Runner) process(ctx context.Context, p preset.Preset, in model.MediaHandle, onStage func(model.MediaHandle)) (*Result, error) {
	start := time.Now()

	if len(p.Stages) == 0 {
		return nil, &PipelineError{File: in.Name(), FailedStageIndex: 1,
			Cause: fmt.Errorf("%w: preset %q has no stages", preset.ErrInvalidStage, p.Name)}
	}

	scratch, err := os.MkdirTemp(r.workDir, "vc-"+sanitize(in.Stem())+"-")
	if err != nil {
		return nil, &PipelineError{File: in.Name(), FailedStageIndex: 1,
			Cause: fmt.Errorf("create scratch dir: %w", err)}
	}

	current := in
	for i, stage := range p.Stages {
		outPath := filepath.Join(scratch, stageFileName(in, p, i))

		out, err := r.exec.Run(ctx, stage, current, outPath)
		if err != nil {
			// 失败时清理该文件的所有中间产物
			if rmErr := os.RemoveAll(scratch); rmErr != nil {
				logger.Warn("failed to remove scratch dir",
					logger.String("dir", scratch), logger.ErrorField(rmErr))
			}
			return nil, &PipelineError{File: in.Name(), FailedStageIndex: i + 1, Cause: err}
		}

		// 上一阶段的产物已不再被引用
		if current.Path != in.Path {
			os.Remove(current.Path)
		}
		current = out
		if onStage != nil {
			onStage(out)
		}
	}

	return &Result{
		Output:     current,
		Stages:     len(p.Stages),
		Elapsed:    time.Since(start),
		scratchDir: scratch,
	}, nil
}

// stageFileName names the artifact of stage i. Intermediates of audio
// inputs are kept as lossless wav; the last stage writes the preset's
// output format, or the input's own container.
func stageFileName(in model.MediaHandle, p preset.Preset, i int) string {
	ext := in.Format
	last := i == len(p.Stages)-1
	switch {
	case last && p.OutputFormat != "":
		ext = p.OutputFormat
	case !last && preset.IsAudioFormat(in.Format):
		ext = "wav"
	}
	return fmt.Sprintf("%s.s%02d.%s", sanitize(in.Stem()), i+1, ext)
}

func sanitize(name string) string {
	out := []rune(name)
	for i, r := range out {
		if r == '/' || r == '\\' || r == 0 {
			out[i] = '_'
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}
