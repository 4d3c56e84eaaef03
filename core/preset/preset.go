package preset

import (
	"fmt"
	"sort"
	"strings"
)

// Preset is a named, ordered list of stages applied to every file in a run.
type Preset struct {
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	OutputFormat string        `yaml:"output_format,omitempty" json:"outputFormat,omitempty"` // Empty keeps the input container
	Stages       []StageConfig `yaml:"stages" json:"stages"`
}

// Validate checks the preset and every stage in it.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: preset name is empty", ErrInvalidStage)
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("%w: preset %q has no stages", ErrInvalidStage, p.Name)
	}
	if p.OutputFormat != "" && !IsMediaFormat(p.OutputFormat) {
		return fmt.Errorf("%w: preset %q has unsupported output format %q", ErrInvalidStage, p.Name, p.OutputFormat)
	}
	for i, s := range p.Stages {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("preset %q stage %d: %w", p.Name, i+1, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the preset.
func (p Preset) Clone() Preset {
	out := p
	out.Stages = make([]StageConfig, len(p.Stages))
	for i, s := range p.Stages {
		out.Stages[i] = s.Clone()
	}
	return out
}

// Registry maps preset names to presets. It is read-only after construction.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry validates presets and builds a registry. A later preset with
// the same name replaces an earlier one.
func NewRegistry(presets ...Preset) (*Registry, error) {
	r := &Registry{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		r.presets[p.Name] = p.Clone()
	}
	return r, nil
}

// DefaultRegistry returns a registry holding the built-in presets.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("built-in presets are invalid: %v", err))
	}
	return r
}

// Resolve looks up a preset by exact, case-sensitive name.
func (r *Registry) Resolve(name string) (Preset, error) {
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p.Clone(), nil
}

// Names returns the registered preset names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every preset sorted by name.
func (r *Registry) All() []Preset {
	out := make([]Preset, 0, len(r.presets))
	for _, name := range r.Names() {
		out = append(out, r.presets[name].Clone())
	}
	return out
}

// 语音频段增强曲线 (频率Hz:增益dB)
const voiceCurve = "100:0;300:4;1000:3;3000:4;6000:1;8000:0"

// Builtin returns the presets shipped with the binary.
func Builtin() []Preset {
	return []Preset{
		{
			Name:        "light",
			Description: "gentle cleanup: band limit, light denoise, peak limit",
			Stages: []StageConfig{
				Stage(KindHighpass, map[string]any{"freq": 80}),
				Stage(KindLowpass, map[string]any{"freq": 10000}),
				Stage(KindDenoise, map[string]any{"nr": 6}),
				Stage(KindLimit, map[string]any{"limit": 0.95}),
			},
		},
		{
			Name:        "default",
			Description: "balanced speech cleanup with adaptive denoise and makeup gain",
			Stages: []StageConfig{
				Stage(KindHighpass, map[string]any{"freq": 80}),
				Stage(KindLowpass, map[string]any{"freq": 8000}),
				Stage(KindDenoise, map[string]any{"nr": 12, "nt": "w", "adaptive": true}),
				Stage(KindCompress, map[string]any{"threshold": -20, "ratio": 3, "attack": 20, "release": 200}),
				Stage(KindEqualize, map[string]any{"bands": voiceCurve}),
				Stage(KindLimit, map[string]any{"limit": 0.95}),
				Stage(KindGain, map[string]any{"auto": true}),
			},
		},
		{
			Name:        "aggressive",
			Description: "strong denoise, narrow speech band, voice presence boost",
			Stages: []StageConfig{
				Stage(KindHighpass, map[string]any{"freq": 150}),
				Stage(KindLowpass, map[string]any{"freq": 7000}),
				Stage(KindDenoise, map[string]any{"nr": 20, "nt": "w", "adaptive": true}),
				Stage(KindCompress, map[string]any{"threshold": -25, "ratio": 4, "attack": 10, "release": 150}),
				Stage(KindEqualize, map[string]any{"bands": voiceCurve, "enhance_voice": true}),
				Stage(KindLimit, map[string]any{"limit": 0.9}),
				Stage(KindGain, map[string]any{"auto": true, "db": 3}),
			},
		},
		{
			Name:        "max_voice",
			Description: "maximum noise removal followed by loudness normalization",
			Stages: []StageConfig{
				Stage(KindDenoise, map[string]any{"nr": 24, "nt": "w"}),
				Stage(KindNormalize, map[string]any{"target": -16, "lra": 11, "tp": -1.5}),
			},
		},
	}
}
