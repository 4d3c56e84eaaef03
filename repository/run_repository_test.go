package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecleaner/model"
)

func TestRecordRoundTrip(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := model.RunSummary{
		RunID:      "run-1",
		Preset:     "max_voice",
		InputDir:   "/in",
		OutputDir:  "/out",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Entries: []model.ReportEntry{
			{FileID: "a.wav", Status: model.JobStatusSucceeded, OutputPath: "/out/a.wav", Elapsed: 1500 * time.Millisecond},
			{FileID: "b.wav", Status: model.JobStatusFailed, Detail: "stage 2 failed", FailedStage: 2},
			{FileID: "c.txt", Status: model.JobStatusSkipped, Detail: "not a media file"},
		},
		Succeeded: 1, Failed: 1, Skipped: 1,
	}

	rec := ToRecord(s)
	assert.Equal(t, "run-1", rec.ID)
	require.Len(t, rec.Files, 3)
	assert.Equal(t, 2, rec.Files[2].Position)
	assert.Equal(t, "run-1", rec.Files[1].RunID)
	assert.Equal(t, int64(1500), rec.Files[0].ElapsedMs)

	assert.Equal(t, s, FromRecord(rec))
}

type memRepo struct {
	saved []model.RunSummary
}

func (m *memRepo) Save(_ context.Context, s model.RunSummary) error {
	m.saved = append(m.saved, s)
	return nil
}

func (m *memRepo) Get(context.Context, string) (*model.RunSummary, error) { return nil, nil }

func (m *memRepo) List(context.Context, int) ([]model.RunRecord, error) { return nil, nil }

func TestHistorySink(t *testing.T) {
	repo := &memRepo{}
	sink := HistorySink{Repo: repo}
	assert.Equal(t, "mysql", sink.Name())
	require.NoError(t, sink.Publish(context.Background(), model.RunSummary{RunID: "x"}))
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "x", repo.saved[0].RunID)
}
