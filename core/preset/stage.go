package preset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// StageKind names one discrete transformation step.
type StageKind string

const (
	KindHighpass    StageKind = "highpass"
	KindLowpass     StageKind = "lowpass"
	KindDenoise     StageKind = "denoise"
	KindCompress    StageKind = "compress"
	KindEqualize    StageKind = "equalize"
	KindLimit       StageKind = "limit"
	KindNormalize   StageKind = "normalize"
	KindGain        StageKind = "gain"
	KindTrimSilence StageKind = "trim-silence"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrInvalidStage  = errors.New("invalid stage configuration")
)

// ParamType is the value type a stage parameter accepts.
type ParamType string

const (
	ParamNumber ParamType = "number"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
)

// ParamSpec describes one allowed parameter of a stage kind.
type ParamSpec struct {
	Name    string
	Type    ParamType
	Min     float64
	Max     float64
	Enum    []string
	Default any
}

// 音频容器格式，所有阶段都支持
var audioFormats = []string{"wav", "mp3", "flac", "m4a", "aac", "ogg", "opus", "wma", "aiff", "aif"}

// 视频容器只处理音轨，视频流直接复制
var videoFormats = []string{"mp4", "mov", "mkv", "avi", "webm", "m4v", "flv"}

var kindSpecs = map[StageKind][]ParamSpec{
	KindHighpass: {
		{Name: "freq", Type: ParamNumber, Min: 10, Max: 2000, Default: 80.0},
	},
	KindLowpass: {
		{Name: "freq", Type: ParamNumber, Min: 1000, Max: 24000, Default: 8000.0},
	},
	KindDenoise: {
		{Name: "nr", Type: ParamNumber, Min: 0.01, Max: 97, Default: 12.0},
		{Name: "nt", Type: ParamString, Enum: []string{"w", "v", "s", "c"}, Default: "w"},
		{Name: "adaptive", Type: ParamBool, Default: false},
	},
	KindCompress: {
		{Name: "threshold", Type: ParamNumber, Min: -60, Max: 0, Default: -20.0},
		{Name: "ratio", Type: ParamNumber, Min: 1, Max: 20, Default: 3.0},
		{Name: "attack", Type: ParamNumber, Min: 0.01, Max: 2000, Default: 20.0},
		{Name: "release", Type: ParamNumber, Min: 0.01, Max: 9000, Default: 200.0},
	},
	KindEqualize: {
		{Name: "bands", Type: ParamString, Default: ""},
		{Name: "enhance_voice", Type: ParamBool, Default: false},
	},
	KindLimit: {
		{Name: "limit", Type: ParamNumber, Min: 0.0625, Max: 1, Default: 0.95},
	},
	KindNormalize: {
		{Name: "target", Type: ParamNumber, Min: -70, Max: -5, Default: -16.0},
		{Name: "lra", Type: ParamNumber, Min: 1, Max: 50, Default: 11.0},
		{Name: "tp", Type: ParamNumber, Min: -9, Max: 0, Default: -1.5},
	},
	KindGain: {
		{Name: "db", Type: ParamNumber, Min: -30, Max: 30, Default: 0.0},
		{Name: "auto", Type: ParamBool, Default: false},
	},
	KindTrimSilence: {
		{Name: "threshold", Type: ParamNumber, Min: -90, Max: -10, Default: -50.0},
		{Name: "duration", Type: ParamNumber, Min: 0.05, Max: 30, Default: 0.5},
	},
}

// Kinds returns every known stage kind, sorted.
func Kinds() []StageKind {
	kinds := make([]StageKind, 0, len(kindSpecs))
	for k := range kindSpecs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Known reports whether k is a registered stage kind.
func (k StageKind) Known() bool {
	_, ok := kindSpecs[k]
	return ok
}

// Params returns the allowed parameters of k.
func (k StageKind) Params() []ParamSpec {
	return kindSpecs[k]
}

// Supports reports whether the stage can consume media of the given format.
// trim-silence changes duration and would desync video, so it is audio only.
func (k StageKind) Supports(format string) bool {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if contains(audioFormats, format) {
		return true
	}
	if k == KindTrimSilence {
		return false
	}
	return contains(videoFormats, format)
}

// IsMediaFormat reports whether format is a container any stage may process.
func IsMediaFormat(format string) bool {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	return contains(audioFormats, format) || contains(videoFormats, format)
}

// IsAudioFormat reports whether format is an audio-only container.
func IsAudioFormat(format string) bool {
	return contains(audioFormats, strings.ToLower(strings.TrimPrefix(format, ".")))
}

func (k StageKind) spec(name string) (ParamSpec, bool) {
	for _, p := range kindSpecs[k] {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// StageConfig is one stage of a preset: a kind and its parameter values.
type StageConfig struct {
	Kind   StageKind      `yaml:"kind" json:"kind"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Stage is a convenience constructor for a StageConfig.
func Stage(kind StageKind, params map[string]any) StageConfig {
	return StageConfig{Kind: kind, Params: params}
}

// Validate checks every parameter against the kind's allowlist.
func (s StageConfig) Validate() error {
	if !s.Kind.Known() {
		return fmt.Errorf("%w: unknown stage kind %q", ErrInvalidStage, s.Kind)
	}
	for name, v := range s.Params {
		spec, ok := s.Kind.spec(name)
		if !ok {
			return fmt.Errorf("%w: %s does not accept parameter %q", ErrInvalidStage, s.Kind, name)
		}
		if err := spec.check(v); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidStage, s.Kind, name, err)
		}
	}
	if s.Kind == KindEqualize {
		if bands := s.String("bands"); bands != "" {
			if _, err := ParseBands(bands); err != nil {
				return err
			}
		}
	}
	return nil
}

// Band is one equalizer point.
type Band struct {
	Freq float64
	Gain float64
}

// ParseBands parses "freq:gain;freq:gain" equalizer curves.
func ParseBands(s string) ([]Band, error) {
	var bands []Band
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		freq, gain, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: equalizer band %q must be freq:gain", ErrInvalidStage, part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(freq), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%w: equalizer band %q has invalid frequency", ErrInvalidStage, part)
		}
		g, err := strconv.ParseFloat(strings.TrimSpace(gain), 64)
		if err != nil || g < -30 || g > 30 {
			return nil, fmt.Errorf("%w: equalizer band %q has invalid gain", ErrInvalidStage, part)
		}
		bands = append(bands, Band{Freq: f, Gain: g})
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: equalizer has no bands", ErrInvalidStage)
	}
	return bands, nil
}

func (p ParamSpec) check(v any) error {
	switch p.Type {
	case ParamNumber:
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		if math.IsNaN(f) || f < p.Min || f > p.Max {
			return fmt.Errorf("%v out of range [%v, %v]", v, p.Min, p.Max)
		}
	case ParamString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, str) {
			return fmt.Errorf("%q not one of %s", str, strings.Join(p.Enum, ", "))
		}
	case ParamBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	}
	return nil
}

// Float returns a numeric parameter or its default.
func (s StageConfig) Float(name string) float64 {
	if v, ok := s.Params[name]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	spec, _ := s.Kind.spec(name)
	f, _ := toFloat(spec.Default)
	return f
}

// String returns a string parameter or its default.
func (s StageConfig) String(name string) string {
	if v, ok := s.Params[name].(string); ok {
		return v
	}
	spec, _ := s.Kind.spec(name)
	str, _ := spec.Default.(string)
	return str
}

// Bool returns a boolean parameter or its default.
func (s StageConfig) Bool(name string) bool {
	if v, ok := s.Params[name].(bool); ok {
		return v
	}
	spec, _ := s.Kind.spec(name)
	b, _ := spec.Default.(bool)
	return b
}

// Clone returns a deep copy so registry contents stay immutable.
func (s StageConfig) Clone() StageConfig {
	out := StageConfig{Kind: s.Kind}
	if s.Params != nil {
		out.Params = make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Describe renders the stage as kind(k=v,...) with sorted keys.
func (s StageConfig) Describe() string {
	if len(s.Params) == 0 {
		return string(s.Kind)
	}
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(s.Params[k]))
	}
	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(parts, ","))
}

func formatValue(v any) string {
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
