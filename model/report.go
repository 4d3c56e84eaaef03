package model

import "time"

// ReportEntry is the outcome of one discovered file.
type ReportEntry struct {
	FileID      string        `json:"fileId"`
	Status      JobStatus     `json:"status"`
	Detail      string        `json:"detail,omitempty"`
	FailedStage int           `json:"failedStage,omitempty"` // 1-based, 0 when no stage failed
	OutputPath  string        `json:"outputPath,omitempty"`
	Elapsed     time.Duration `json:"elapsed,omitempty"`
}

// RunSummary is the finalized, order-preserving snapshot of one batch run.
type RunSummary struct {
	RunID      string        `json:"runId"`
	Preset     string        `json:"preset"`
	InputDir   string        `json:"inputDir"`
	OutputDir  string        `json:"outputDir"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Entries    []ReportEntry `json:"entries"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
}

// Entry returns the entry for fileID, if present.
func (s *RunSummary) Entry(fileID string) (ReportEntry, bool) {
	for _, e := range s.Entries {
		if e.FileID == fileID {
			return e, true
		}
	}
	return ReportEntry{}, false
}

// HasFailures reports whether any file failed.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}
