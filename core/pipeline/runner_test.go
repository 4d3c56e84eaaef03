package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecleaner/core/preset"
	"voicecleaner/model"
)

func threeStagePreset() preset.Preset {
	return preset.Preset{
		Name: "three",
		Stages: []preset.StageConfig{
			preset.Stage(preset.KindHighpass, nil),
			preset.Stage(preset.KindLowpass, nil),
			preset.Stage(preset.KindLimit, nil),
		},
	}
}

func TestRunner_StagesRunInOrder(t *testing.T) {
	inDir, workDir := t.TempDir(), t.TempDir()
	in := model.NewMediaHandle(writeFile(t, inDir, "talk.mp3", "voice"))

	proc := &fakeProcessor{}
	runner := NewRunner(NewStageExecutor(proc, time.Second, 0), workDir)

	res, err := runner.Process(context.Background(), threeStagePreset(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stages)
	assert.Equal(t, "mp3", res.Output.Format)

	data, err := os.ReadFile(res.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, "voice|highpass=f=80|lowpass=f=8000|alimiter=limit=0.95", string(data))

	// 每个阶段只消费上一阶段的产物
	require.Len(t, proc.requests, 3)
	assert.Equal(t, in.Path, proc.requests[0].Input)
	assert.Equal(t, proc.requests[0].Output, proc.requests[1].Input)
	assert.Equal(t, proc.requests[1].Output, proc.requests[2].Input)
	assert.Equal(t, "wav", model.FormatOf(proc.requests[0].Output))

	// Only the final artifact remains before cleanup.
	assert.Equal(t, []string{filepath.Base(res.Output.Path)}, dirEntries(t, filepath.Dir(res.Output.Path)))

	require.NoError(t, res.Cleanup())
	assert.Empty(t, dirEntries(t, workDir))
	assert.FileExists(t, in.Path)
}

func TestRunner_FailureReportsStageAndCleansUp(t *testing.T) {
	inDir, workDir := t.TempDir(), t.TempDir()
	in := model.NewMediaHandle(writeFile(t, inDir, "talk.wav", "FAIL@alimiter"))

	runner := NewRunner(NewStageExecutor(&fakeProcessor{}, time.Second, 0), workDir)
	res, err := runner.Process(context.Background(), threeStagePreset(), in)
	assert.Nil(t, res)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.FailedStageIndex)
	assert.Equal(t, "talk.wav", pe.File)

	var se *StageExecutionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, preset.KindLimit, se.Kind)

	assert.Empty(t, dirEntries(t, workDir))
	assert.FileExists(t, in.Path)
}

func TestRunner_FirstStageFailure(t *testing.T) {
	inDir, workDir := t.TempDir(), t.TempDir()
	in := model.NewMediaHandle(writeFile(t, inDir, "clip.mp4", "video"))

	p := preset.Preset{Name: "trim", Stages: []preset.StageConfig{preset.Stage(preset.KindTrimSilence, nil)}}
	runner := NewRunner(NewStageExecutor(&fakeProcessor{}, time.Second, 0), workDir)
	_, err := runner.Process(context.Background(), p, in)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.FailedStageIndex)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Empty(t, dirEntries(t, workDir))
}

func TestRunner_OutputFormat(t *testing.T) {
	inDir, workDir := t.TempDir(), t.TempDir()
	in := model.NewMediaHandle(writeFile(t, inDir, "talk.m4a", "voice"))

	p := threeStagePreset()
	p.OutputFormat = "flac"
	runner := NewRunner(NewStageExecutor(&fakeProcessor{}, time.Second, 0), workDir)
	res, err := runner.Process(context.Background(), p, in)
	require.NoError(t, err)
	defer res.Cleanup()
	assert.Equal(t, "flac", res.Output.Format)
	assert.Equal(t, "talk.s03.flac", filepath.Base(res.Output.Path))
}

func TestRunner_ProcessJob(t *testing.T) {
	inDir, workDir := t.TempDir(), t.TempDir()
	runner := NewRunner(NewStageExecutor(&fakeProcessor{}, time.Second, 0), workDir)

	ok := model.NewFileJob("ok.wav", model.NewMediaHandle(writeFile(t, inDir, "ok.wav", "voice")))
	res, err := runner.ProcessJob(context.Background(), threeStagePreset(), ok)
	require.NoError(t, err)
	defer res.Cleanup()
	assert.Equal(t, model.JobStatusRunning, ok.Status)
	assert.Equal(t, 3, ok.StageIndex)
	assert.Len(t, ok.Outputs, 3)

	bad := model.NewFileJob("bad.wav", model.NewMediaHandle(writeFile(t, inDir, "bad.wav", "FAIL@lowpass")))
	_, err = runner.ProcessJob(context.Background(), threeStagePreset(), bad)
	require.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, bad.Status)
	assert.Equal(t, 1, bad.StageIndex)

	_, err = runner.ProcessJob(context.Background(), threeStagePreset(), bad)
	assert.ErrorIs(t, err, model.ErrStatusRegression)
}
