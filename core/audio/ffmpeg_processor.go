package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"voicecleaner/logger"
	"voicecleaner/model"
)

// FFmpegProcessor implements the Processor interface using ffmpeg and ffprobe.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. An empty ffprobePath is
// derived from ffmpegPath.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		dir, base := filepath.Split(ffmpegPath)
		ffprobePath = dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// FFmpegPath returns the configured ffmpeg binary.
func (p *FFmpegProcessor) FFmpegPath() string {
	return p.ffmpegPath
}

// FFprobePath returns the configured ffprobe binary.
func (p *FFmpegProcessor) FFprobePath() string {
	return p.ffprobePath
}

// CheckAvailable verifies both binaries can be resolved and returns their versions.
func (p *FFmpegProcessor) CheckAvailable(ctx context.Context) (ffmpegVersion, ffprobeVersion string, err error) {
	if _, err := exec.LookPath(p.ffmpegPath); err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrFFmpegNotFound, p.ffmpegPath)
	}
	if _, err := exec.LookPath(p.ffprobePath); err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrFFprobeNotFound, p.ffprobePath)
	}
	return versionLine(ctx, p.ffmpegPath), versionLine(ctx, p.ffprobePath), nil
}

func versionLine(ctx context.Context, bin string) string {
	out, err := exec.CommandContext(ctx, bin, "-version").Output()
	if err != nil {
		return "unknown"
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.Index(line, "\n"); idx > 0 {
		line = line[:idx]
	}
	return line
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecType        string `json:"codec_type"`
		CodecName        string `json:"codec_name"`
		SampleRate       string `json:"sample_rate"`
		Channels         int    `json:"channels"`
		BitsPerRawSample string `json:"bits_per_raw_sample"`
		BitsPerSample    int    `json:"bits_per_sample"`
		Duration         string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe uses ffprobe to read the first audio and video stream of a file.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*model.MediaInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	stdout, err := p.run(ctx, "ffprobe", p.ffprobePath, args)
	if err != nil {
		var ffErr *FFmpegError
		if errors.As(err, &ffErr) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMedia, err)
		}
		return nil, err
	}
	return parseProbe(stdout)
}

func parseProbe(data []byte) (*model.MediaInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: unreadable ffprobe output: %v", ErrInvalidMedia, err)
	}

	info := &model.MediaInfo{FormatName: out.Format.FormatName}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = s.CodecName
			info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			info.Channels = s.Channels
			if bits, err := strconv.Atoi(s.BitsPerRawSample); err == nil && bits > 0 {
				info.BitDepth = bits
			} else if s.BitsPerSample > 0 {
				info.BitDepth = s.BitsPerSample
			}
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = s.CodecName
		}
	}

	if !info.HasAudio {
		return nil, ErrNoAudioStream
	}
	return info, nil
}

// Transform rewrites the audio track of req.Input into req.Output.
func (p *FFmpegProcessor) Transform(ctx context.Context, req TransformRequest) error {
	if req.Input == req.Output {
		return fmt.Errorf("ffmpeg: refusing to write %s in place", req.Input)
	}

	args := []string{
		"-hide_banner", "-nostdin",
		"-loglevel", "error",
		"-i", req.Input,
		"-map", "0:a:0",
	}
	if req.KeepVideo {
		args = append(args, "-map", "0:v:0?", "-c:v", "copy")
	} else {
		args = append(args, "-vn")
	}
	filter := "aresample=async=1"
	if req.AudioFilter != "" {
		filter = req.AudioFilter + "," + filter
	}
	args = append(args, "-af", filter, "-y", req.Output)

	logger.Debug("Executing FFmpeg command",
		logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	if _, err := p.run(ctx, "ffmpeg", p.ffmpegPath, args); err != nil {
		return err
	}

	info, err := os.Stat(req.Output)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output %s: %w", req.Output, err)
	}
	if info.Size() == 0 {
		os.Remove(req.Output)
		return &FFmpegError{Tool: "ffmpeg", Summary: "output file is empty", Err: ErrInvalidMedia}
	}
	return nil
}

// Measure runs an analysis filter to a null sink and returns stderr, where
// filters such as silencedetect and volumedetect report their results.
func (p *FFmpegProcessor) Measure(ctx context.Context, path, filter string) (string, error) {
	args := []string{
		"-hide_banner", "-nostdin", "-nostats",
		"-loglevel", "info",
		"-i", path,
		"-vn",
		"-af", filter,
		"-f", "null", "-",
	}
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", p.wrapRunError(ctx, "ffmpeg", err, stderr.String())
	}
	return stderr.String(), nil
}

// run executes bin and returns stdout. Failures become *FFmpegError, a
// not-found sentinel, or the context error when ctx ended first.
func (p *FFmpegProcessor) run(ctx context.Context, tool, bin string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, p.wrapRunError(ctx, tool, err, stderr.String())
	}
	return out.Bytes(), nil
}

func (p *FFmpegProcessor) wrapRunError(ctx context.Context, tool string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", tool, ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) {
		if tool == "ffprobe" {
			return fmt.Errorf("%w: %v", ErrFFprobeNotFound, err)
		}
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	return &FFmpegError{Tool: tool, Summary: parseFFmpegError(stderr), Err: err}
}
