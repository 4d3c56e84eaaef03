package repository

import (
	"time"

	"voicecleaner/model"
)

// ToRecord converts a summary into persistence rows.
func ToRecord(s model.RunSummary) model.RunRecord {
	run := model.RunRecord{
		ID:         s.RunID,
		Preset:     s.Preset,
		InputDir:   s.InputDir,
		OutputDir:  s.OutputDir,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Files:      make([]model.FileRecord, 0, len(s.Entries)),
	}
	for i, e := range s.Entries {
		run.Files = append(run.Files, model.FileRecord{
			RunID:       s.RunID,
			Position:    i,
			FileID:      e.FileID,
			Status:      string(e.Status),
			Detail:      e.Detail,
			FailedStage: e.FailedStage,
			OutputPath:  e.OutputPath,
			ElapsedMs:   e.Elapsed.Milliseconds(),
		})
	}
	return run
}

// FromRecord converts persistence rows back into a summary.
func FromRecord(run model.RunRecord) model.RunSummary {
	s := model.RunSummary{
		RunID:      run.ID,
		Preset:     run.Preset,
		InputDir:   run.InputDir,
		OutputDir:  run.OutputDir,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Succeeded:  run.Succeeded,
		Failed:     run.Failed,
		Skipped:    run.Skipped,
		Entries:    make([]model.ReportEntry, 0, len(run.Files)),
	}
	for _, f := range run.Files {
		s.Entries = append(s.Entries, model.ReportEntry{
			FileID:      f.FileID,
			Status:      model.JobStatus(f.Status),
			Detail:      f.Detail,
			FailedStage: f.FailedStage,
			OutputPath:  f.OutputPath,
			Elapsed:     time.Duration(f.ElapsedMs) * time.Millisecond,
		})
	}
	return s
}
