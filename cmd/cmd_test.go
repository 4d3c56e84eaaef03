package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecleaner/config"
	"voicecleaner/model"
)

func sampleSummary() *model.RunSummary {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.RunSummary{
		RunID:      "run-1",
		Preset:     "max_voice",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Entries: []model.ReportEntry{
			{FileID: "a.mp3", Status: model.JobStatusSucceeded, OutputPath: "/out/a.mp3", Elapsed: 700 * time.Millisecond},
			{FileID: "b.wav", Status: model.JobStatusFailed, FailedStage: 2, Detail: "stage 2 (normalize): Conversion failed!"},
			{FileID: "notes.txt", Status: model.JobStatusSkipped, Detail: "not a media file"},
		},
		Succeeded: 1,
		Failed:    1,
		Skipped:   1,
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, sampleSummary())
	out := buf.String()

	assert.Contains(t, out, "FILE")
	assert.Regexp(t, `a\.mp3\s+succeeded\s+-\s+700ms\s+a\.mp3`, out)
	assert.Regexp(t, `b\.wav\s+failed\s+2\s+`, out)
	assert.Contains(t, out, "not a media file")
	assert.Contains(t, out, "1 succeeded, 1 failed, 1 skipped in 1.5s")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a.mp3")), bytes.Index(buf.Bytes(), []byte("b.wav")))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, sampleSummary()))
	assert.Contains(t, buf.String(), `"failedStage": 2`)
}

func TestApplyFlags(t *testing.T) {
	defer resetFlags()
	cfg = &config.Config{InputDir: "env-in", OutputDir: "env-out", DefaultPreset: "default", Workers: 1}
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--input", "flag-in", "--preset", "light", "--workers", "3", "--strict", "--timeout", "90s"}))

	applyFlags(cmd)
	assert.Equal(t, "flag-in", cfg.InputDir)
	assert.Equal(t, "env-out", cfg.OutputDir)
	assert.Equal(t, "light", cfg.DefaultPreset)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.FailOnFileError)
	assert.Equal(t, 90*time.Second, cfg.FFmpegTimeout)
}

func TestExitError(t *testing.T) {
	base := errors.New("2 of 5 files failed")
	err := error(&exitError{code: exitFileFailure, err: base})
	assert.ErrorIs(t, err, base)
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.code)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"presets", "check", "watch", "serve", "redis", "minio", "history"} {
		assert.True(t, names[want], want)
	}
}
