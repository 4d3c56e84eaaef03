package model

import (
	"path/filepath"
	"strings"
)

// MediaHandle references one media artifact on disk at some point in the pipeline.
type MediaHandle struct {
	Path     string  `json:"path"`
	Format   string  `json:"format"`   // Lowercase extension without the dot, e.g. "wav"
	Duration float64 `json:"duration"` // Seconds, zero until probed
}

// NewMediaHandle builds a handle whose format is derived from the file extension.
func NewMediaHandle(path string) MediaHandle {
	return MediaHandle{Path: path, Format: FormatOf(path)}
}

// Name returns the base file name of the artifact.
func (h MediaHandle) Name() string {
	return filepath.Base(h.Path)
}

// Stem returns the base file name without its extension.
func (h MediaHandle) Stem() string {
	name := h.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FormatOf returns the lowercase extension of path without the leading dot.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// MediaInfo is the subset of ffprobe output the pipeline cares about.
type MediaInfo struct {
	FormatName string  `json:"formatName"`
	Duration   float64 `json:"duration"`
	AudioCodec string  `json:"audioCodec"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bitDepth,omitempty"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	HasAudio   bool    `json:"hasAudio"`
	HasVideo   bool    `json:"hasVideo"`
}

// AudioAnalysis holds loudness measurements used by adaptive stages.
type AudioAnalysis struct {
	NoiseLevelDB  float64       `json:"noiseLevelDb"`
	SpeechLevelDB float64       `json:"speechLevelDb"`
	MeanVolumeDB  float64       `json:"meanVolumeDb"`
	MaxVolumeDB   float64       `json:"maxVolumeDb"`
	SilenceRatio  float64       `json:"silenceRatio"`
	HasMusic      bool          `json:"hasMusic"`
	Silences      []TimeSegment `json:"silences,omitempty"`
}

// TimeSegment is a [Start, End) interval in seconds.
type TimeSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
