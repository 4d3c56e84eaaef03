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

func TestStageExecutor_Run(t *testing.T) {
	dir := t.TempDir()
	in := model.NewMediaHandle(writeFile(t, dir, "in.wav", "voice"))
	outPath := filepath.Join(dir, "out.wav")

	exec := NewStageExecutor(&fakeProcessor{}, time.Second, 0)
	out, err := exec.Run(context.Background(), preset.Stage(preset.KindHighpass, nil), in, outPath)
	require.NoError(t, err)
	assert.Equal(t, outPath, out.Path)
	assert.Equal(t, "wav", out.Format)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "voice|highpass=f=80", string(data))

	orig, err := os.ReadFile(in.Path)
	require.NoError(t, err)
	assert.Equal(t, "voice", string(orig))
}

func TestStageExecutor_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	exec := NewStageExecutor(&fakeProcessor{}, time.Second, 0)

	tests := []struct {
		name  string
		file  string
		stage preset.StageConfig
	}{
		{"text file", "notes.txt", preset.Stage(preset.KindDenoise, nil)},
		{"trim silence on video", "clip.mp4", preset.Stage(preset.KindTrimSilence, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := model.NewMediaHandle(writeFile(t, dir, tt.file, "data"))
			_, err := exec.Run(context.Background(), tt.stage, in, filepath.Join(dir, "out."+in.Format))

			var se *StageExecutionError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.stage.Kind, se.Kind)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
			assert.NoFileExists(t, filepath.Join(dir, "out."+in.Format))
		})
	}
}

func TestStageExecutor_Timeout(t *testing.T) {
	dir := t.TempDir()
	in := model.NewMediaHandle(writeFile(t, dir, "in.wav", "SLOW"))
	outPath := filepath.Join(dir, "out.wav")

	exec := NewStageExecutor(&fakeProcessor{}, 50*time.Millisecond, 0)
	_, err := exec.Run(context.Background(), preset.Stage(preset.KindLimit, nil), in, outPath)

	var se *StageExecutionError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NoFileExists(t, outPath)
}

func TestStageExecutor_Cancelled(t *testing.T) {
	dir := t.TempDir()
	in := model.NewMediaHandle(writeFile(t, dir, "in.wav", "SLOW"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	exec := NewStageExecutor(&fakeProcessor{}, time.Minute, 0)
	_, err := exec.Run(ctx, preset.Stage(preset.KindLimit, nil), in, filepath.Join(dir, "out.wav"))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestStageExecutor_FailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	in := model.NewMediaHandle(writeFile(t, dir, "in.wav", "FAIL@alimiter"))
	outPath := filepath.Join(dir, "out.wav")

	exec := NewStageExecutor(&fakeProcessor{}, time.Second, 0)
	_, err := exec.Run(context.Background(), preset.Stage(preset.KindLimit, nil), in, outPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Conversion failed!")
	assert.NoFileExists(t, outPath)
	assert.FileExists(t, in.Path)
}

func TestStageExecutor_OutputTooLarge(t *testing.T) {
	dir := t.TempDir()
	in := model.NewMediaHandle(writeFile(t, dir, "in.wav", "voice"))
	outPath := filepath.Join(dir, "out.wav")

	exec := NewStageExecutor(&fakeProcessor{}, time.Second, 8)
	_, err := exec.Run(context.Background(), preset.Stage(preset.KindHighpass, nil), in, outPath)
	assert.ErrorIs(t, err, ErrOutputTooLarge)
	assert.NoFileExists(t, outPath)
}

func TestStageExecutor_RefusesInPlace(t *testing.T) {
	dir := t.TempDir()
	in := model.NewMediaHandle(writeFile(t, dir, "in.wav", "voice"))

	exec := NewStageExecutor(&fakeProcessor{}, time.Second, 0)
	_, err := exec.Run(context.Background(), preset.Stage(preset.KindHighpass, nil), in, in.Path)
	require.Error(t, err)

	data, err := os.ReadFile(in.Path)
	require.NoError(t, err)
	assert.Equal(t, "voice", string(data))
}

func TestStageExecutor_KeepsVideoForVideoContainers(t *testing.T) {
	dir := t.TempDir()
	proc := &fakeProcessor{}
	exec := NewStageExecutor(proc, time.Second, 0)

	in := model.NewMediaHandle(writeFile(t, dir, "clip.mp4", "video"))
	_, err := exec.Run(context.Background(), preset.Stage(preset.KindDenoise, nil), in, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)

	require.Len(t, proc.requests, 1)
	assert.True(t, proc.requests[0].KeepVideo)
}
