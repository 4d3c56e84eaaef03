package audio

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicecleaner/model"
)

const silenceOutput = `[silencedetect @ 0x55d0] silence_start: 0
[silencedetect @ 0x55d0] silence_end: 1.5 | silence_duration: 1.5
size=N/A time=00:00:05.00 bitrate=N/A speed= 500x
[silencedetect @ 0x55d0] silence_start: 3.25
[silencedetect @ 0x55d0] silence_end: 4 | silence_duration: 0.75
[silencedetect @ 0x55d0] silence_start: 9.5
`

const volumeOutput = `[Parsed_volumedetect_0 @ 0x1] n_samples: 441000
[Parsed_volumedetect_0 @ 0x1] mean_volume: -24.3 dB
[Parsed_volumedetect_0 @ 0x1] max_volume: -3.7 dB
[Parsed_volumedetect_0 @ 0x1] histogram_3db: 12
`

func TestParseSilence(t *testing.T) {
	segs := ParseSilence(silenceOutput, 10)
	require.Len(t, segs, 3)
	assert.Equal(t, model.TimeSegment{Start: 0, End: 1.5}, segs[0])
	assert.Equal(t, model.TimeSegment{Start: 3.25, End: 4}, segs[1])
	assert.Equal(t, model.TimeSegment{Start: 9.5, End: 10}, segs[2])

	assert.InDelta(t, 0.275, SilenceRatio(segs, 10), 1e-9)
	assert.Equal(t, 0.0, SilenceRatio(segs, 0))
	assert.Empty(t, ParseSilence("nothing here", 5))
}

func TestParseVolume(t *testing.T) {
	mean, max, ok := ParseVolume(volumeOutput)
	require.True(t, ok)
	assert.Equal(t, -24.3, mean)
	assert.Equal(t, -3.7, max)

	_, _, ok = ParseVolume("no stats")
	assert.False(t, ok)
}

func TestAdaptNoiseReduction(t *testing.T) {
	assert.Equal(t, 12.0, AdaptNoiseReduction(12, -45))
	assert.InDelta(t, 8.4, AdaptNoiseReduction(12, -55), 1e-9)
	assert.Equal(t, 3.0, AdaptNoiseReduction(2, -55))
	assert.InDelta(t, 15.6, AdaptNoiseReduction(12, -30), 1e-9)
	assert.Equal(t, 24.0, AdaptNoiseReduction(20, -30))
}

func TestDetectMusic(t *testing.T) {
	assert.True(t, DetectMusic(-25, -20, 0.5))
	assert.True(t, DetectMusic(-30, -18, 0.01))
	assert.False(t, DetectMusic(-45, -18, 0.2))
}

func TestParseFFmpegError(t *testing.T) {
	stderr := "Input #0, wav\n  Duration: 00:00:01\n[in] Invalid data found when processing input\nConversion failed!\n"
	assert.Equal(t, "Conversion failed!", parseFFmpegError(stderr))
	assert.Equal(t, "last line", parseFFmpegError("first\nlast line\n"))
	assert.Contains(t, parseFFmpegError(""), "empty stderr")
}

func TestParseProbe(t *testing.T) {
	data := `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264"},
    {"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2, "duration": "12.5"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.48"}
}`
	info, err := parseProbe([]byte(data))
	require.NoError(t, err)
	assert.True(t, info.HasAudio)
	assert.True(t, info.HasVideo)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 12.48, info.Duration)

	_, err = parseProbe([]byte(`{"streams":[{"codec_type":"video"}],"format":{}}`))
	assert.ErrorIs(t, err, ErrNoAudioStream)

	_, err = parseProbe([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMedia)
}

type measureStub struct {
	Processor
	outputs map[string]string
	err     error
}

func (m *measureStub) Measure(_ context.Context, _ string, filter string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	for prefix, out := range m.outputs {
		if strings.HasPrefix(filter, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func TestAnalyze(t *testing.T) {
	stub := &measureStub{outputs: map[string]string{
		"silencedetect": silenceOutput,
		"volumedetect":  volumeOutput,
	}}
	a, err := Analyze(context.Background(), stub, "in.wav", 10)
	require.NoError(t, err)
	assert.Len(t, a.Silences, 3)
	assert.InDelta(t, -14.0, a.SpeechLevelDB, 1e-9)
	assert.Equal(t, fallbackNoiseDB, a.NoiseLevelDB)
	assert.False(t, a.HasMusic)
}

func TestAnalyze_FallsBackOnMeasureFailure(t *testing.T) {
	stub := &measureStub{err: errors.New("boom")}
	a, err := Analyze(context.Background(), stub, "in.wav", 10)
	require.NoError(t, err)
	assert.Equal(t, fallbackNoiseDB, a.NoiseLevelDB)
	assert.Equal(t, fallbackSpeechDB, a.SpeechLevelDB)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &measureStub{err: context.Canceled}
	_, err := Analyze(ctx, stub, "in.wav", 10)
	assert.Error(t, err)
}

func TestNewFFmpegProcessor_DerivesProbePath(t *testing.T) {
	p := NewFFmpegProcessor("/opt/bin/ffmpeg", "")
	assert.Equal(t, "/opt/bin/ffprobe", p.FFprobePath())
	assert.Equal(t, "ffmpeg", NewFFmpegProcessor("", "").FFmpegPath())
}
