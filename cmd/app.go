package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"voicecleaner/cache"
	"voicecleaner/config"
	"voicecleaner/core/audio"
	"voicecleaner/core/pipeline"
	"voicecleaner/core/preset"
	"voicecleaner/db"
	"voicecleaner/logger"
	"voicecleaner/repository"
	"voicecleaner/storage"
)

// app holds the wired components shared by the commands that process files.
type app struct {
	cfg      *config.Config
	proc     *audio.FFmpegProcessor
	registry *preset.Registry
	orch     *pipeline.Orchestrator
	cache    *cache.ReportCache

	redis *redis.Client
	gdb   *gorm.DB
}

// newApp verifies ffmpeg, loads presets and connects the configured report
// sinks. A sink that cannot connect is logged and left out.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	proc := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
	ffmpegVer, ffprobeVer, err := proc.CheckAvailable(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("ffmpeg available",
		logger.String("ffmpeg", ffmpegVer),
		logger.String("ffprobe", ffprobeVer))

	registry, err := preset.LoadRegistry(cfg.PresetFile)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}

	a := &app{cfg: cfg, proc: proc, registry: registry}
	sinks := a.openSinks(ctx)

	a.orch = pipeline.NewOrchestrator(registry, proc, pipeline.Options{
		Workers:        cfg.Workers,
		WorkDir:        cfg.WorkDir,
		StageTimeout:   cfg.FFmpegTimeout,
		MaxOutputBytes: cfg.MaxOutputBytes(),
	}, sinks...)
	return a, nil
}

func (a *app) openSinks(ctx context.Context) []pipeline.ReportSink {
	var sinks []pipeline.ReportSink

	if a.cfg.RedisEnabled() {
		client, err := cache.ConnectRedis(ctx, a.cfg)
		if err != nil {
			logger.Warn("Redis report cache disabled", logger.ErrorField(err))
		} else {
			a.redis = client
			a.cache = cache.NewReportCache(client, a.cfg.RedisTTL)
			sinks = append(sinks, a.cache)
		}
	}

	if a.cfg.DBEnabled() {
		gdb, err := db.ConnectGormDB(a.cfg)
		if err == nil {
			err = db.AutoMigrate(gdb)
		}
		if err != nil {
			logger.Warn("MySQL run history disabled", logger.ErrorField(err))
			_ = db.CloseGormDB(gdb)
		} else {
			a.gdb = gdb
			sinks = append(sinks, repository.HistorySink{Repo: repository.NewGormRunRepository(gdb)})
		}
	}

	if a.cfg.MinioEnabled() {
		client, err := storage.NewMinioClient(ctx, a.cfg)
		if err != nil {
			logger.Warn("MinIO archive disabled", logger.ErrorField(err))
		} else {
			sinks = append(sinks, storage.NewArchiver(client, a.cfg.MinioBucket, a.cfg.MinioPrefix))
		}
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	if len(names) > 0 {
		logger.Info("report sinks enabled", logger.Strings("sinks", names))
	}
	return sinks
}

// Close releases sink connections.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("failed to close Redis", logger.ErrorField(err))
		}
	}
	if a.gdb != nil {
		if err := db.CloseGormDB(a.gdb); err != nil {
			logger.Warn("failed to close database", logger.ErrorField(err))
		}
	}
}
