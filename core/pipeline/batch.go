package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"voicecleaner/core/audio"
	"voicecleaner/core/preset"
	"voicecleaner/logger"
	"voicecleaner/model"
)

// ErrOutputIsInput is returned when the output directory is the input directory.
var ErrOutputIsInput = errors.New("output directory must differ from input directory")

// ReportSink receives the finalized summary of every run.
type ReportSink interface {
	Name() string
	Publish(ctx context.Context, summary model.RunSummary) error
}

// Options tunes the orchestrator.
type Options struct {
	Workers        int
	WorkDir        string
	StageTimeout   time.Duration
	MaxOutputBytes int64
	SinkTimeout    time.Duration
}

// Orchestrator runs a preset over every media file of a directory.
type Orchestrator struct {
	registry *preset.Registry
	runner   *Runner
	workers  int
	sinks    []ReportSink
	sinkWait time.Duration

	mu        sync.Mutex
	listeners []RecordListener
	active    sync.Map // runID -> *Report
}

// NewOrchestrator creates an orchestrator. Workers defaults to min(NumCPU, 4).
func NewOrchestrator(registry *preset.Registry, proc audio.Processor, opts Options, sinks ...ReportSink) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > 4 {
			workers = 4 // ffmpeg 本身是 CPU 密集型，避免过度并发
		}
	}
	sinkWait := opts.SinkTimeout
	if sinkWait <= 0 {
		sinkWait = 30 * time.Second
	}
	exec := NewStageExecutor(proc, opts.StageTimeout, opts.MaxOutputBytes)
	return &Orchestrator{
		registry: registry,
		runner:   NewRunner(exec, opts.WorkDir),
		workers:  workers,
		sinks:    sinks,
		sinkWait: sinkWait,
	}
}

// Registry returns the preset registry used to resolve runs.
func (o *Orchestrator) Registry() *preset.Registry {
	return o.registry
}

// Workers returns the worker pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// OnRecord registers a listener attached to every future run report.
func (o *Orchestrator) OnRecord(l RecordListener) {
	o.mu.Lock()
	o.listeners = append(o.listeners, l)
	o.mu.Unlock()
}

// AddSink registers a sink for the summaries of future runs.
func (o *Orchestrator) AddSink(s ReportSink) {
	o.mu.Lock()
	o.sinks = append(o.sinks, s)
	o.mu.Unlock()
}

// Active returns a live snapshot of a run that is still in progress.
func (o *Orchestrator) Active(runID string) (model.RunSummary, bool) {
	v, ok := o.active.Load(runID)
	if !ok {
		return model.RunSummary{}, false
	}
	return v.(*Report).Snapshot(), true
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Run processes inputDir into outputDir with the named preset.
func (o *Orchestrator) Run(ctx context.Context, inputDir, outputDir, presetName string) (*model.RunSummary, error) {
	return o.RunWithID(ctx, NewRunID(), inputDir, outputDir, presetName)
}

// RunWithID is Run with a caller-chosen run ID. Batch-level failures
// (unknown preset, unreadable input, unusable output) return an empty
// summary and an error before any file is touched. Per-file failures are
// only recorded in the summary.
func (o *Orchestrator) RunWithID(ctx context.Context, runID, inputDir, outputDir, presetName string) (*model.RunSummary, error) {
	empty := &model.RunSummary{
		RunID:     runID,
		Preset:    presetName,
		InputDir:  inputDir,
		OutputDir: outputDir,
		Entries:   []model.ReportEntry{},
	}

	p, err := o.registry.Resolve(presetName)
	if err != nil {
		return empty, err
	}

	files, err := Discover(inputDir)
	if err != nil {
		return empty, err
	}

	if same, err := sameDir(inputDir, outputDir); err != nil {
		return empty, fmt.Errorf("resolve directories: %w", err)
	} else if same {
		return empty, ErrOutputIsInput
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return empty, fmt.Errorf("create output directory: %w", err)
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.Name
	}
	report := NewReport(RunInfo{RunID: runID, Preset: p.Name, InputDir: inputDir, OutputDir: outputDir}, ids)
	o.mu.Lock()
	for _, l := range o.listeners {
		report.OnRecord(l)
	}
	o.mu.Unlock()
	o.active.Store(runID, report)
	defer o.active.Delete(runID)

	logger.Info("batch started",
		logger.String("runId", runID),
		logger.String("preset", p.Name),
		logger.String("input", inputDir),
		logger.String("output", outputDir),
		logger.Int("files", len(files)),
		logger.Int("workers", o.workers))

	var media []DiscoveredFile
	for _, f := range files {
		if !f.Media {
			o.record(report, model.ReportEntry{
				FileID: f.Name,
				Status: model.JobStatusSkipped,
				Detail: "not a media file",
			})
			continue
		}
		media = append(media, f)
	}
	names := planOutputNames(media, p.OutputFormat)

	tasks := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range tasks {
				f := media[idx]
				entry := o.processFile(ctx, p, f.Handle(), filepath.Join(outputDir, names[idx]))
				logger.Debug("worker finished file",
					logger.Int("worker", workerID),
					logger.String("file", f.Name))
				o.record(report, entry)
			}
		}(i)
	}

feed:
	for idx := range media {
		select {
		case tasks <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	// 未开始处理的文件标记为已取消
	if ctx.Err() != nil {
		for _, e := range report.Snapshot().Entries {
			if e.Status == model.JobStatusPending {
				o.record(report, model.ReportEntry{
					FileID: e.FileID,
					Status: model.JobStatusFailed,
					Detail: ErrCancelled.Error(),
				})
			}
		}
	}

	summary := report.Finalize()
	logger.Info("batch finished",
		logger.String("runId", runID),
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
		logger.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	o.publish(ctx, summary)
	return &summary, nil
}

// ProcessFile runs p on a single file and places the result in outputDir
// as name, or under the file's own stem when name is empty.
func (o *Orchestrator) ProcessFile(ctx context.Context, p preset.Preset, path, outputDir, name string) model.ReportEntry {
	in := model.NewMediaHandle(path)
	if !IsMediaFile(path) {
		return model.ReportEntry{FileID: in.Name(), Status: model.JobStatusSkipped, Detail: "not a media file"}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return model.ReportEntry{FileID: in.Name(), Status: model.JobStatusFailed, Detail: err.Error()}
	}
	if name == "" {
		name = outputName(in, p.OutputFormat)
	}
	return o.processFile(ctx, p, in, filepath.Join(outputDir, name))
}

func (o *Orchestrator) processFile(ctx context.Context, p preset.Preset, in model.MediaHandle, dest string) model.ReportEntry {
	start := time.Now()
	entry := model.ReportEntry{FileID: in.Name(), Status: model.JobStatusFailed}
	failed := func(err error) model.ReportEntry {
		entry.Detail = err.Error()
		entry.Elapsed = time.Since(start)
		var pe *PipelineError
		if errors.As(err, &pe) {
			entry.FailedStage = pe.FailedStageIndex
		}
		logger.Warn("file failed",
			logger.String("file", in.Name()),
			logger.Int("failedStage", entry.FailedStage),
			logger.ErrorField(err))
		return entry
	}

	if ctx.Err() != nil {
		return failed(ErrCancelled)
	}

	info, err := o.runner.exec.Probe(ctx, in.Path)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return failed(err)
		}
		return failed(fmt.Errorf("probe: %w", err))
	}
	in.Duration = info.Duration

	job := model.NewFileJob(in.Name(), in)
	res, err := o.runner.ProcessJob(ctx, p, job)
	if err != nil {
		return failed(err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("failed to clean scratch dir", logger.String("file", in.Name()), logger.ErrorField(err))
		}
	}()

	if err := placeOutput(res.Output.Path, dest); err != nil {
		job.Transition(model.JobStatusFailed)
		return failed(fmt.Errorf("place output: %w", err))
	}
	job.Transition(model.JobStatusSucceeded)

	entry.Status = model.JobStatusSucceeded
	entry.OutputPath = dest
	entry.Elapsed = time.Since(start)
	logger.Info("file processed",
		logger.String("file", in.Name()),
		logger.String("output", dest),
		logger.Int("stages", job.StageIndex),
		logger.Duration("elapsed", entry.Elapsed))
	return entry
}

func (o *Orchestrator) record(r *Report, e model.ReportEntry) {
	if err := r.RecordEntry(e); err != nil {
		logger.Error("failed to record report entry", logger.String("file", e.FileID), logger.ErrorField(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, summary model.RunSummary) {
	o.mu.Lock()
	sinks := append([]ReportSink(nil), o.sinks...)
	o.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.sinkWait)
	defer cancel()

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(s ReportSink) {
			defer wg.Done()
			if err := s.Publish(pubCtx, summary); err != nil {
				logger.Warn("report sink failed",
					logger.String("sink", s.Name()),
					logger.String("runId", summary.RunID),
					logger.ErrorField(err))
				return
			}
			logger.Debug("report published", logger.String("sink", s.Name()), logger.String("runId", summary.RunID))
		}(sink)
	}
	wg.Wait()
}

// planOutputNames assigns output file names in discovery order. Files
// that would land on the same output name keep their source extension in
// the name.
func planOutputNames(files []DiscoveredFile, outputFormat string) []string {
	names := make([]string, len(files))
	counts := make(map[string]int, len(files))
	for _, f := range files {
		counts[strings.ToLower(outputName(f.Handle(), outputFormat))]++
	}
	used := make(map[string]bool, len(files))
	for i, f := range files {
		h := f.Handle()
		name := outputName(h, outputFormat)
		if counts[strings.ToLower(name)] > 1 {
			name = collisionName(h, outputFormat)
		}
		names[i] = uniqueName(name, func(n string) bool { return used[strings.ToLower(n)] })
		used[strings.ToLower(names[i])] = true
	}
	return names
}

// outputClaims hands out output names to files arriving one at a time, so
// two sources never share an output file.
type outputClaims struct {
	owners map[string]string // lower-cased output name -> source path
}

func newOutputClaims() *outputClaims {
	return &outputClaims{owners: make(map[string]string)}
}

// claim returns the output name for h. A source keeps the name it was
// given the first time.
func (c *outputClaims) claim(h model.MediaHandle, outputFormat string) string {
	taken := func(n string) bool {
		owner, ok := c.owners[strings.ToLower(n)]
		return ok && owner != h.Path
	}
	name := outputName(h, outputFormat)
	if taken(name) {
		name = collisionName(h, outputFormat)
	}
	name = uniqueName(name, taken)
	c.owners[strings.ToLower(name)] = h.Path
	return name
}

func outputName(in model.MediaHandle, outputFormat string) string {
	if outputFormat == "" {
		return in.Name()
	}
	return in.Stem() + "." + strings.ToLower(outputFormat)
}

func collisionName(in model.MediaHandle, outputFormat string) string {
	ext := strings.ToLower(outputFormat)
	if ext == "" {
		ext = in.Format
	}
	return fmt.Sprintf("%s_%s.%s", in.Stem(), in.Format, ext)
}

// uniqueName appends _2, _3, ... before the extension until taken reports false.
func uniqueName(name string, taken func(string) bool) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; taken(name); n++ {
		name = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return name
}

// placeOutput moves src to dst, falling back to copy plus rename when the
// scratch dir lives on another device.
func placeOutput(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	os.Chmod(dst, 0644)
	return os.Remove(src)
}

func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(infoA, infoB), nil
}
