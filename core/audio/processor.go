package audio

import (
	"context"

	"voicecleaner/model"
)

// TransformRequest describes one ffmpeg pass that rewrites the audio track.
type TransformRequest struct {
	Input       string
	Output      string
	AudioFilter string // ffmpeg -af graph
	KeepVideo   bool   // Copy the first video stream unchanged
}

// Processor defines the external media-processing capability.
type Processor interface {
	// Probe reads stream metadata of a media file.
	Probe(ctx context.Context, path string) (*model.MediaInfo, error)
	// Transform writes req.Output from req.Input through the audio filter.
	Transform(ctx context.Context, req TransformRequest) error
	// Measure runs an analysis filter and returns ffmpeg's diagnostic output.
	Measure(ctx context.Context, path, filter string) (string, error)
}
