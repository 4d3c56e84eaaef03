package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFFmpegNotFound  = errors.New("ffmpeg not found")
	ErrFFprobeNotFound = errors.New("ffprobe not found")
	ErrNoAudioStream   = errors.New("no audio stream")
	ErrInvalidMedia    = errors.New("invalid or corrupted media file")
)

// FFmpegError is a non-zero exit of ffmpeg or ffprobe.
type FFmpegError struct {
	Tool    string // "ffmpeg" or "ffprobe"
	Summary string // Most relevant stderr line
	Err     error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Summary)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

var errorKeywords = []string{"error", "invalid", "no such file", "cannot", "failed"}

// parseFFmpegError picks the last stderr line that looks like an error,
// falling back to the last non-empty line.
func parseFFmpegError(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return "unknown error (empty stderr)"
	}
	lines := strings.Split(stderr, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		lower := strings.ToLower(lines[i])
		for _, kw := range errorKeywords {
			if strings.Contains(lower, kw) {
				return strings.TrimSpace(lines[i])
			}
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
