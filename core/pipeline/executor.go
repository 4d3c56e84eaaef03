package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"voicecleaner/core/audio"
	"voicecleaner/core/preset"
	"voicecleaner/logger"
	"voicecleaner/model"
)

// StageExecutor runs a single stage against one media artifact.
type StageExecutor struct {
	proc           audio.Processor
	timeout        time.Duration
	maxOutputBytes int64
}

// NewStageExecutor creates an executor. A zero timeout or size limit disables it.
func NewStageExecutor(proc audio.Processor, timeout time.Duration, maxOutputBytes int64) *StageExecutor {
	return &StageExecutor{
		proc:           proc,
		timeout:        timeout,
		maxOutputBytes: maxOutputBytes,
	}
}

// Run applies stage to in and writes exactly one new artifact at outPath.
// The input is never modified. Every failure is a *StageExecutionError and
// leaves nothing behind at outPath.
func (e *StageExecutor) Run(ctx context.Context, stage preset.StageConfig, in model.MediaHandle, outPath string) (model.MediaHandle, error) {
	fail := func(cause error) (model.MediaHandle, error) {
		os.Remove(outPath)
		return model.MediaHandle{}, &StageExecutionError{Kind: stage.Kind, Cause: cause}
	}

	if !stage.Kind.Supports(in.Format) {
		return model.MediaHandle{}, &StageExecutionError{
			Kind:  stage.Kind,
			Cause: fmt.Errorf("%w: %s cannot process %q", ErrUnsupportedFormat, stage.Kind, in.Format),
		}
	}
	if outPath == in.Path {
		return model.MediaHandle{}, &StageExecutionError{
			Kind:  stage.Kind,
			Cause: fmt.Errorf("output path %s equals input", outPath),
		}
	}

	stageCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var analysis *model.AudioAnalysis
	if audio.NeedsAnalysis(stage) {
		a, err := audio.Analyze(stageCtx, e.proc, in.Path, in.Duration)
		if err != nil {
			return fail(e.classify(ctx, stageCtx, err))
		}
		analysis = a
	}

	filter, err := audio.BuildFilter(stage, analysis)
	if err != nil {
		return fail(err)
	}

	out := model.MediaHandle{Path: outPath, Format: model.FormatOf(outPath), Duration: in.Duration}
	req := audio.TransformRequest{
		Input:       in.Path,
		Output:      outPath,
		AudioFilter: filter,
		KeepVideo:   !preset.IsAudioFormat(out.Format),
	}

	start := time.Now()
	if err := e.proc.Transform(stageCtx, req); err != nil {
		return fail(e.classify(ctx, stageCtx, err))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fail(fmt.Errorf("stage produced no artifact: %w", err))
	}
	if info.Size() == 0 {
		return fail(fmt.Errorf("%w: stage produced an empty artifact", audio.ErrInvalidMedia))
	}
	if e.maxOutputBytes > 0 && info.Size() > e.maxOutputBytes {
		return fail(fmt.Errorf("%w: %d bytes > %d", ErrOutputTooLarge, info.Size(), e.maxOutputBytes))
	}

	logger.Debug("stage complete",
		logger.String("stage", string(stage.Kind)),
		logger.String("input", in.Name()),
		logger.String("filter", filter),
		logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Probe inspects path under the same per-invocation timeout as a stage.
func (e *StageExecutor) Probe(ctx context.Context, path string) (*model.MediaInfo, error) {
	probeCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	info, err := e.proc.Probe(probeCtx, path)
	if err != nil {
		return nil, e.classify(ctx, probeCtx, err)
	}
	return info, nil
}

// classify maps context expiry to ErrTimeout (stage deadline) or
// ErrCancelled (parent cancelled) and keeps other causes.
func (e *StageExecutor) classify(parent, stageCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
	return err
}
