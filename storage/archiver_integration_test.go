package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"voicecleaner/config"
	"voicecleaner/model"
)

// startMinio runs a throwaway MinIO server and returns its config.
func startMinio(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("container test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return &config.Config{
		MinioEndpoint:  host + ":" + port.Port(),
		MinioAccessKey: "minioadmin",
		MinioSecretKey: "minioadmin",
		MinioBucket:    "voicecleaner-test",
		MinioPrefix:    "runs",
	}
}

func TestArchiver_PublishListDelete(t *testing.T) {
	cfg := startMinio(t)
	ctx := context.Background()

	client, err := NewMinioClient(ctx, cfg)
	require.NoError(t, err)
	// 存储桶已存在时再次初始化也应成功
	_, err = NewMinioClient(ctx, cfg)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "talk.wav")
	require.NoError(t, os.WriteFile(out, []byte("cleaned voice"), 0644))

	summary := model.RunSummary{
		RunID:  "run-42",
		Preset: "default",
		Entries: []model.ReportEntry{
			{FileID: "talk.wav", Status: model.JobStatusSucceeded, OutputPath: out},
			{FileID: "bad.wav", Status: model.JobStatusFailed, FailedStage: 1, Detail: "Invalid data"},
			{FileID: "notes.txt", Status: model.JobStatusSkipped, Detail: "not a media file"},
		},
		Succeeded: 1, Failed: 1, Skipped: 1,
	}

	a := NewArchiver(client, cfg.MinioBucket, cfg.MinioPrefix)
	require.NoError(t, a.Publish(ctx, summary))

	objects, err := a.ListObjects(ctx, a.RunPrefix("run-42"))
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"runs/run-42/report.json", "runs/run-42/talk.wav"}, keys)
	assert.Equal(t, int64(len("cleaned voice")), objects[1].Size)

	obj, err := client.GetObject(ctx, cfg.MinioBucket, "runs/run-42/report.json", minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	var stored model.RunSummary
	require.NoError(t, json.NewDecoder(obj).Decode(&stored))
	assert.Equal(t, summary.Entries, stored.Entries)

	n, err := a.DeleteRun(ctx, "run-42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	objects, err = a.ListObjects(ctx, a.RunPrefix("run-42"))
	require.NoError(t, err)
	assert.Empty(t, objects)
}
