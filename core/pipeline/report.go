package pipeline

import (
	"fmt"
	"sync"
	"time"

	"voicecleaner/model"
)

// RunInfo identifies a batch run.
type RunInfo struct {
	RunID     string
	Preset    string
	InputDir  string
	OutputDir string
}

// RecordListener is notified after every accepted record.
type RecordListener func(runID string, entry model.ReportEntry)

// Report is the per-file outcome ledger of one run. Entries keep discovery
// order regardless of completion order; appends are serialized.
type Report struct {
	mu        sync.Mutex
	info      RunInfo
	startedAt time.Time
	order     []string
	entries   map[string]model.ReportEntry
	listeners []RecordListener
	finalized bool
	summary   model.RunSummary
}

// NewReport creates a report with one pending slot per discovered file.
func NewReport(info RunInfo, fileIDs []string) *Report {
	r := &Report{
		info:      info,
		startedAt: time.Now(),
		entries:   make(map[string]model.ReportEntry, len(fileIDs)),
	}
	for _, id := range fileIDs {
		if _, dup := r.entries[id]; dup {
			continue
		}
		r.order = append(r.order, id)
		r.entries[id] = model.ReportEntry{FileID: id, Status: model.JobStatusPending}
	}
	return r
}

// OnRecord registers a listener. Listeners run on the recording goroutine.
func (r *Report) OnRecord(l RecordListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Record stores the outcome of fileID.
func (r *Report) Record(fileID string, status model.JobStatus, detail string) error {
	return r.RecordEntry(model.ReportEntry{FileID: fileID, Status: status, Detail: detail})
}

// RecordEntry stores a full entry. Files not seen at discovery are appended
// at the end. A terminal entry never changes status afterwards.
func (r *Report) RecordEntry(e model.ReportEntry) error {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return fmt.Errorf("%w: record %s", ErrReportFinalized, e.FileID)
	}
	prev, ok := r.entries[e.FileID]
	if !ok {
		r.order = append(r.order, e.FileID)
	} else if prev.Status.Terminal() && prev.Status != e.Status {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is already %s", model.ErrStatusRegression, e.FileID, prev.Status)
	}
	r.entries[e.FileID] = e
	listeners := append([]RecordListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(r.info.RunID, e)
	}
	return nil
}

// Snapshot returns the current state without finalizing.
func (r *Report) Snapshot() model.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return copySummary(r.summary)
	}
	return r.buildLocked(time.Time{})
}

// Finalize freezes the report and returns an order-preserving summary.
// Further calls return the same summary.
func (r *Report) Finalize() model.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.summary = r.buildLocked(time.Now())
		r.finalized = true
	}
	return copySummary(r.summary)
}

func (r *Report) buildLocked(finishedAt time.Time) model.RunSummary {
	s := model.RunSummary{
		RunID:      r.info.RunID,
		Preset:     r.info.Preset,
		InputDir:   r.info.InputDir,
		OutputDir:  r.info.OutputDir,
		StartedAt:  r.startedAt,
		FinishedAt: finishedAt,
		Entries:    make([]model.ReportEntry, 0, len(r.order)),
	}
	for _, id := range r.order {
		e := r.entries[id]
		switch e.Status {
		case model.JobStatusSucceeded:
			s.Succeeded++
		case model.JobStatusFailed:
			s.Failed++
		case model.JobStatusSkipped:
			s.Skipped++
		}
		s.Entries = append(s.Entries, e)
	}
	return s
}

func copySummary(s model.RunSummary) model.RunSummary {
	entries := make([]model.ReportEntry, len(s.Entries))
	copy(entries, s.Entries)
	s.Entries = entries
	return s
}
