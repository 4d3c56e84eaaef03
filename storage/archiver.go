package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"voicecleaner/logger"
	"voicecleaner/model"
)

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Archiver uploads run outputs and reports to a bucket under <prefix>/<runID>/.
type Archiver struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewArchiver creates an archiver for bucket.
func NewArchiver(client *minio.Client, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// RunPrefix returns the object prefix of a run.
func (a *Archiver) RunPrefix(runID string) string {
	if a.prefix == "" {
		return runID + "/"
	}
	return path.Join(a.prefix, runID) + "/"
}

// Name implements pipeline.ReportSink.
func (a *Archiver) Name() string {
	return "minio"
}

// Publish uploads every succeeded output and the JSON report.
func (a *Archiver) Publish(ctx context.Context, summary model.RunSummary) error {
	prefix := a.RunPrefix(summary.RunID)
	uploaded := 0
	for _, e := range summary.Entries {
		if e.Status != model.JobStatusSucceeded || e.OutputPath == "" {
			continue
		}
		key := prefix + filepath.Base(e.OutputPath)
		_, err := a.client.FPutObject(ctx, a.bucket, key, e.OutputPath, minio.PutObjectOptions{
			ContentType: ContentTypeFor(e.OutputPath),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", e.FileID, err)
		}
		uploaded++
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, prefix+"report.json", bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}

	logger.Info("run archived",
		logger.String("runId", summary.RunID),
		logger.String("bucket", a.bucket),
		logger.String("prefix", prefix),
		logger.Int("files", uploaded))
	return nil
}

// ListObjects lists archived objects under prefix, sorted by key.
func (a *Archiver) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// DeleteRun removes every object archived for runID and returns how many were removed.
func (a *Archiver) DeleteRun(ctx context.Context, runID string) (int, error) {
	objects, err := a.ListObjects(ctx, a.RunPrefix(runID))
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	for rmErr := range a.client.RemoveObjects(ctx, a.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rmErr.Err != nil {
			return 0, fmt.Errorf("remove %s: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	return len(objects), nil
}

// ContentTypeFor infers a MIME type from a file name.
func ContentTypeFor(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "m4a", "aac":
		return "audio/mp4"
	case "ogg", "opus":
		return "audio/ogg"
	case "mp4", "m4v":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	case "webm":
		return "video/webm"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
