package audio

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"voicecleaner/logger"
	"voicecleaner/model"
)

const (
	silenceThresholdDB = -35.0
	silenceMinDuration = 0.4

	// 无法测量时使用的保守估计
	fallbackNoiseDB  = -45.0
	fallbackSpeechDB = -18.0
	noiseFloorDB     = -60.0
)

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
	meanVolumeRe   = regexp.MustCompile(`mean_volume:\s*(-?[\d.]+|-inf)\s*dB`)
	maxVolumeRe    = regexp.MustCompile(`max_volume:\s*(-?[\d.]+|-inf)\s*dB`)
)

// Analyze measures silence and loudness of path. Measurement failures fall
// back to conservative estimates instead of failing the stage.
func Analyze(ctx context.Context, proc Processor, path string, duration float64) (*model.AudioAnalysis, error) {
	a := &model.AudioAnalysis{
		NoiseLevelDB:  fallbackNoiseDB,
		SpeechLevelDB: fallbackSpeechDB,
	}

	silenceFilter := "silencedetect=n=" + formatFloat(silenceThresholdDB) + "dB:d=" + formatFloat(silenceMinDuration)
	stderr, err := proc.Measure(ctx, path, silenceFilter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("silence detection failed, assuming no silence",
			logger.String("path", path), logger.ErrorField(err))
	} else {
		a.Silences = ParseSilence(stderr, duration)
		a.SilenceRatio = SilenceRatio(a.Silences, duration)
	}

	stderr, err = proc.Measure(ctx, path, "volumedetect")
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("volume detection failed, using default levels",
			logger.String("path", path), logger.ErrorField(err))
	} else if mean, max, ok := ParseVolume(stderr); ok {
		a.MeanVolumeDB = mean
		a.MaxVolumeDB = max
		a.SpeechLevelDB = (mean + max) / 2
		if len(a.Silences) == 0 {
			a.NoiseLevelDB = maxFloat(mean-30, noiseFloorDB)
		}
	}

	a.HasMusic = DetectMusic(a.NoiseLevelDB, a.SpeechLevelDB, a.SilenceRatio)

	logger.Debug("audio analysis complete",
		logger.String("path", path),
		logger.Float64("noiseDb", a.NoiseLevelDB),
		logger.Float64("speechDb", a.SpeechLevelDB),
		logger.Float64("silenceRatio", a.SilenceRatio),
		logger.Bool("music", a.HasMusic))
	return a, nil
}

// ParseSilence extracts silence intervals from silencedetect output. A
// trailing silence_start without an end is closed at duration when known.
func ParseSilence(stderr string, duration float64) []model.TimeSegment {
	var segments []model.TimeSegment
	var start float64
	open := false
	for _, line := range strings.Split(stderr, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start, _ = strconv.ParseFloat(m[1], 64)
			if start < 0 {
				start = 0
			}
			open = true
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && open {
			end, _ := strconv.ParseFloat(m[1], 64)
			segments = append(segments, model.TimeSegment{Start: start, End: end})
			open = false
		}
	}
	if open && duration > start {
		segments = append(segments, model.TimeSegment{Start: start, End: duration})
	}
	return segments
}

// SilenceRatio is the share of duration covered by segments, capped at 1.
func SilenceRatio(segments []model.TimeSegment, duration float64) float64 {
	if len(segments) == 0 || duration <= 0 {
		return 0
	}
	var total float64
	for _, s := range segments {
		total += s.End - s.Start
	}
	if r := total / duration; r < 1 {
		return r
	}
	return 1
}

// ParseVolume extracts mean and max volume from volumedetect output.
func ParseVolume(stderr string) (mean, max float64, ok bool) {
	m := meanVolumeRe.FindStringSubmatch(stderr)
	if m == nil {
		return 0, 0, false
	}
	mean = parseDB(m[1])
	max = mean
	if mm := maxVolumeRe.FindStringSubmatch(stderr); mm != nil {
		max = parseDB(mm[1])
	}
	return mean, max, true
}

func parseDB(s string) float64 {
	if s == "-inf" {
		return -91
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// AdaptNoiseReduction scales the denoise strength to the measured noise
// floor: quiet recordings get less, noisy recordings get more.
func AdaptNoiseReduction(base, noiseLevelDB float64) float64 {
	switch {
	case noiseLevelDB < -50:
		return maxFloat(3, base*0.7)
	case noiseLevelDB > -35:
		return minFloat(24, base*1.3)
	default:
		return base
	}
}

// AutoGain returns the makeup gain compensating for level lost in filtering.
func AutoGain(a *model.AudioAnalysis) float64 {
	if a == nil {
		return 8
	}
	if a.SpeechLevelDB-a.NoiseLevelDB > 20 {
		return 5
	}
	return 8
}

// DetectMusic guesses whether background music is present.
func DetectMusic(noiseLevelDB, speechLevelDB, silenceRatio float64) bool {
	diff := speechLevelDB - noiseLevelDB
	if diff < 15 && silenceRatio < 0.05 {
		return true
	}
	return diff < 10
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
