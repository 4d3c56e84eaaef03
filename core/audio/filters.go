package audio

import (
	"fmt"
	"strconv"
	"strings"

	"voicecleaner/core/preset"
	"voicecleaner/model"
)

// NeedsAnalysis reports whether the stage adapts to measured loudness.
func NeedsAnalysis(stage preset.StageConfig) bool {
	switch stage.Kind {
	case preset.KindDenoise:
		return stage.Bool("adaptive")
	case preset.KindGain:
		return stage.Bool("auto")
	default:
		return false
	}
}

// BuildFilter renders one stage as an ffmpeg audio filter graph. analysis
// may be nil for stages that do not adapt.
func BuildFilter(stage preset.StageConfig, analysis *model.AudioAnalysis) (string, error) {
	switch stage.Kind {
	case preset.KindHighpass:
		return "highpass=f=" + formatFloat(stage.Float("freq")), nil

	case preset.KindLowpass:
		return "lowpass=f=" + formatFloat(stage.Float("freq")), nil

	case preset.KindDenoise:
		nr := stage.Float("nr")
		if stage.Bool("adaptive") && analysis != nil {
			nr = AdaptNoiseReduction(nr, analysis.NoiseLevelDB)
		}
		return fmt.Sprintf("afftdn=nr=%s:nt=%s", formatFloat(round2(nr)), stage.String("nt")), nil

	case preset.KindCompress:
		return fmt.Sprintf("acompressor=threshold=%sdB:ratio=%s:attack=%s:release=%s",
			formatFloat(stage.Float("threshold")),
			formatFloat(stage.Float("ratio")),
			formatFloat(stage.Float("attack")),
			formatFloat(stage.Float("release"))), nil

	case preset.KindEqualize:
		var filters []string
		if bands := stage.String("bands"); bands != "" {
			entries, err := equalizerEntries(bands)
			if err != nil {
				return "", err
			}
			filters = append(filters, "firequalizer=gain_entry='"+entries+"'")
		}
		if stage.Bool("enhance_voice") {
			filters = append(filters,
				"equalizer=f=3000:width_type=o:width=1:g=2",
				"equalizer=f=1000:width_type=o:width=1:g=1",
				"equalizer=f=4000:width_type=o:width=0.5:g=1",
			)
		}
		if len(filters) == 0 {
			return "anull", nil
		}
		return strings.Join(filters, ","), nil

	case preset.KindLimit:
		return "alimiter=limit=" + formatFloat(stage.Float("limit")), nil

	case preset.KindNormalize:
		return fmt.Sprintf("loudnorm=I=%s:LRA=%s:TP=%s",
			formatFloat(stage.Float("target")),
			formatFloat(stage.Float("lra")),
			formatFloat(stage.Float("tp"))), nil

	case preset.KindGain:
		db := stage.Float("db")
		if stage.Bool("auto") {
			db += AutoGain(analysis)
		}
		return "volume=" + formatFloat(db) + "dB", nil

	case preset.KindTrimSilence:
		threshold := formatFloat(stage.Float("threshold"))
		duration := formatFloat(stage.Float("duration"))
		return fmt.Sprintf(
			"silenceremove=start_periods=1:start_duration=%[2]s:start_threshold=%[1]sdB:"+
				"stop_periods=-1:stop_duration=%[2]s:stop_threshold=%[1]sdB",
			threshold, duration), nil

	default:
		return "", fmt.Errorf("%w: no filter for stage kind %q", preset.ErrInvalidStage, stage.Kind)
	}
}

// equalizerEntries turns "300:4;1000:2" into "entry(300,4);entry(1000,2)".
func equalizerEntries(spec string) (string, error) {
	bands, err := preset.ParseBands(spec)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(bands))
	for _, b := range bands {
		parts = append(parts, fmt.Sprintf("entry(%s,%s)", formatFloat(b.Freq), formatFloat(b.Gain)))
	}
	return strings.Join(parts, ";"), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
