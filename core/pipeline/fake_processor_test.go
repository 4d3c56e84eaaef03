package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"voicecleaner/core/audio"
	"voicecleaner/model"
)

// fakeProcessor appends "|<filter>" to the input content. Inputs containing
// "FAIL@<prefix>" fail the stage whose filter starts with prefix after
// writing a partial artifact; "SLOW" blocks until the context ends;
// "NOAUDIO" fails probing; "HANGINFO" blocks inspection until the context ends.
type fakeProcessor struct {
	mu       sync.Mutex
	requests []audio.TransformRequest

	inflight    int32
	maxInflight int32
}

func (f *fakeProcessor) Probe(ctx context.Context, path string) (*model.MediaInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.Contains(data, []byte("HANGINFO")) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if bytes.Contains(data, []byte("NOAUDIO")) {
		return nil, audio.ErrNoAudioStream
	}
	return &model.MediaInfo{HasAudio: true, Duration: 1.5, AudioCodec: "pcm_s16le"}, nil
}

func (f *fakeProcessor) Transform(ctx context.Context, req audio.TransformRequest) error {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInflight, max, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	data, err := os.ReadFile(req.Input)
	if err != nil {
		return err
	}
	if bytes.Contains(data, []byte("SLOW")) {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, marker := range failMarkers(data) {
		if strings.HasPrefix(req.AudioFilter, marker) {
			os.WriteFile(req.Output, []byte("partial"), 0644)
			return &audio.FFmpegError{Tool: "ffmpeg", Summary: "Conversion failed!"}
		}
	}
	out := append(append([]byte{}, data...), []byte("|"+req.AudioFilter)...)
	return os.WriteFile(req.Output, out, 0644)
}

func (f *fakeProcessor) Measure(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakeProcessor) filters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.AudioFilter
	}
	return out
}

func failMarkers(data []byte) []string {
	var markers []string
	for _, field := range strings.Fields(string(data)) {
		if m, ok := strings.CutPrefix(field, "FAIL@"); ok {
			markers = append(markers, strings.Split(m, "|")[0])
		}
	}
	return markers
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
