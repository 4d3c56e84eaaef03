package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"voicecleaner/logger"
	"voicecleaner/model"
)

const keyPrefix = "voicecleaner:run:"

// ErrRunNotFound is returned when no cached summary exists for a run.
var ErrRunNotFound = errors.New("run not found in cache")

// ReportCache stores finalized run summaries in Redis.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache wraps client. A zero ttl keeps entries forever.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// RunKey returns the Redis key of a run summary.
func RunKey(runID string) string {
	return keyPrefix + runID
}

// LatestKey holds the ID of the most recent run.
func LatestKey() string {
	return keyPrefix + "latest"
}

// Name implements pipeline.ReportSink.
func (c *ReportCache) Name() string {
	return "redis"
}

// Publish implements pipeline.ReportSink.
func (c *ReportCache) Publish(ctx context.Context, summary model.RunSummary) error {
	return c.Save(ctx, summary)
}

// Save writes the summary and points the latest key at it.
func (c *ReportCache) Save(ctx context.Context, summary model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, RunKey(summary.RunID), data, c.ttl)
	pipe.Set(ctx, LatestKey(), summary.RunID, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache run %s: %w", summary.RunID, err)
	}

	logger.Debug("run summary cached",
		logger.String("runId", summary.RunID),
		logger.Int("size", len(data)),
		logger.Duration("ttl", c.ttl))
	return nil
}

// Get loads the summary of runID.
func (c *ReportCache) Get(ctx context.Context, runID string) (*model.RunSummary, error) {
	data, err := c.client.Get(ctx, RunKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return decodeSummary(data)
}

// Latest loads the most recently saved summary.
func (c *ReportCache) Latest(ctx context.Context) (*model.RunSummary, error) {
	runID, err := c.client.Get(ctx, LatestKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no runs yet", ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	return c.Get(ctx, runID)
}

func decodeSummary(data []byte) (*model.RunSummary, error) {
	var s model.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	return &s, nil
}
