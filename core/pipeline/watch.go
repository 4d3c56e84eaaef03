package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"voicecleaner/logger"
	"voicecleaner/model"
)

// WatchOptions configures a directory watcher.
type WatchOptions struct {
	InputDir        string
	OutputDir       string
	Preset          string
	Settle          time.Duration // Quiet period before a file counts as complete
	ProcessExisting bool          // Also process files already present at start
}

// Watcher processes media files as they arrive in a directory.
type Watcher struct {
	orch *Orchestrator
	opts WatchOptions
}

// NewWatcher creates a watcher running on orch's worker pool size.
func NewWatcher(orch *Orchestrator, opts WatchOptions) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	return &Watcher{orch: orch, opts: opts}
}

// Run blocks until ctx is cancelled. Every processed file is recorded in a
// report that is finalized and published when the watcher stops.
func (w *Watcher) Run(ctx context.Context) (*model.RunSummary, error) {
	p, err := w.orch.registry.Resolve(w.opts.Preset)
	if err != nil {
		return nil, err
	}
	if _, err := Discover(w.opts.InputDir); err != nil {
		return nil, err
	}
	if same, _ := sameDir(w.opts.InputDir, w.opts.OutputDir); same {
		return nil, ErrOutputIsInput
	}
	if err := os.MkdirAll(w.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.opts.InputDir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.opts.InputDir, err)
	}

	runID := NewRunID()
	report := NewReport(RunInfo{
		RunID:     runID,
		Preset:    p.Name,
		InputDir:  w.opts.InputDir,
		OutputDir: w.opts.OutputDir,
	}, nil)
	w.orch.mu.Lock()
	for _, l := range w.orch.listeners {
		report.OnRecord(l)
	}
	w.orch.mu.Unlock()
	w.orch.active.Store(runID, report)
	defer w.orch.active.Delete(runID)

	logger.Info("watching for new files",
		logger.String("runId", runID),
		logger.String("input", w.opts.InputDir),
		logger.String("preset", p.Name),
		logger.Duration("settle", w.opts.Settle))

	type task struct {
		path string
		name string
	}
	tasks := make(chan task, 64)
	var wg sync.WaitGroup
	for i := 0; i < w.orch.Workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				entry := w.orch.ProcessFile(ctx, p, t.path, w.opts.OutputDir, t.name)
				w.orch.record(report, entry)
			}
		}()
	}
	claims := newOutputClaims()

	// 待处理文件：路径 -> 最后一次变化时间
	pending := make(map[string]time.Time)
	processed := make(map[string]time.Time)

	if w.opts.ProcessExisting {
		files, _ := Discover(w.opts.InputDir)
		for _, f := range files {
			if f.Media {
				pending[f.Path] = time.Time{}
			}
		}
	}

	tick := w.opts.Settle / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	checkTicker := time.NewTicker(tick)
	defer checkTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case event, ok := <-watcher.Events:
			if !ok {
				break loop
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !IsMediaFile(event.Name) {
				logger.Debug("ignoring non-media file", logger.String("file", event.Name))
				continue
			}
			pending[event.Name] = time.Now()

		case <-checkTicker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.opts.Settle {
					continue // 文件可能还在写入
				}
				info, complete := fileComplete(path)
				if info == nil {
					delete(pending, path)
					continue
				}
				if !complete {
					pending[path] = now
					continue
				}
				if prev, seen := processed[path]; seen && !info.ModTime().After(prev) {
					delete(pending, path)
					continue
				}

				name := claims.claim(model.NewMediaHandle(path), p.OutputFormat)
				select {
				case tasks <- task{path: path, name: name}:
					processed[path] = info.ModTime()
					delete(pending, path)
					logger.Debug("queued new file", logger.String("file", path))
				default:
					// 队列已满，下次再试
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				break loop
			}
			logger.Warn("file watcher error", logger.ErrorField(err))
		}
	}

	close(tasks)
	wg.Wait()

	summary := report.Finalize()
	w.orch.publish(ctx, summary)
	logger.Info("watch stopped",
		logger.String("runId", runID),
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed))
	return &summary, nil
}

// fileComplete reports whether path exists, is non-empty, and did not grow
// during a short wait. info is nil when the file is gone.
func fileComplete(path string) (os.FileInfo, bool) {
	info1, err := os.Stat(path)
	if err != nil || !info1.Mode().IsRegular() {
		return nil, false
	}
	if info1.Size() == 0 {
		return info1, false
	}

	time.Sleep(30 * time.Millisecond)

	info2, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return info2, info1.Size() == info2.Size() && info1.ModTime().Equal(info2.ModTime())
}
