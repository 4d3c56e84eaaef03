package repository

import (
	"context"

	"voicecleaner/model"
)

// HistorySink publishes finalized runs into a RunRepository.
type HistorySink struct {
	Repo RunRepository
}

// Name implements pipeline.ReportSink.
func (s HistorySink) Name() string {
	return "mysql"
}

// Publish implements pipeline.ReportSink.
func (s HistorySink) Publish(ctx context.Context, summary model.RunSummary) error {
	return s.Repo.Save(ctx, summary)
}
