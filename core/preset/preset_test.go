package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Builtin(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range r.Names() {
		p, err := r.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
		assert.NotEmpty(t, p.Stages, name)
	}
	assert.Equal(t, []string{"aggressive", "default", "light", "max_voice"}, r.Names())
}

func TestResolve_MaxVoiceStages(t *testing.T) {
	p, err := DefaultRegistry().Resolve("max_voice")
	require.NoError(t, err)
	require.Len(t, p.Stages, 2)
	assert.Equal(t, KindDenoise, p.Stages[0].Kind)
	assert.Equal(t, KindNormalize, p.Stages[1].Kind)
}

func TestResolve_Unknown(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"nonexistent", "Default", "MAX_VOICE", "max", "", " default"} {
		_, err := r.Resolve(name)
		assert.ErrorIs(t, err, ErrUnknownPreset, "name %q", name)
	}
}

func TestResolve_ReturnsCopy(t *testing.T) {
	r := DefaultRegistry()
	p, err := r.Resolve("light")
	require.NoError(t, err)
	p.Stages[0].Params["freq"] = 1234
	p.Stages = p.Stages[:1]

	again, err := r.Resolve("light")
	require.NoError(t, err)
	assert.Len(t, again.Stages, 4)
	assert.Equal(t, 80.0, again.Stages[0].Float("freq"))
}

func TestNewRegistry_LaterOverrides(t *testing.T) {
	r, err := NewRegistry(
		Preset{Name: "x", Stages: []StageConfig{Stage(KindLimit, nil)}},
		Preset{Name: "x", Stages: []StageConfig{Stage(KindGain, map[string]any{"db": 2})}},
	)
	require.NoError(t, err)
	p, err := r.Resolve("x")
	require.NoError(t, err)
	require.Len(t, p.Stages, 1)
	assert.Equal(t, KindGain, p.Stages[0].Kind)
}

func TestNewRegistry_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		preset Preset
	}{
		{"empty name", Preset{Stages: []StageConfig{Stage(KindLimit, nil)}}},
		{"no stages", Preset{Name: "p"}},
		{"bad output format", Preset{Name: "p", OutputFormat: "txt", Stages: []StageConfig{Stage(KindLimit, nil)}}},
		{"bad stage", Preset{Name: "p", Stages: []StageConfig{Stage("reverb", nil)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.preset)
			assert.ErrorIs(t, err, ErrInvalidStage)
		})
	}
}

func TestStageValidate(t *testing.T) {
	tests := []struct {
		name    string
		stage   StageConfig
		wantErr bool
	}{
		{"defaults", Stage(KindDenoise, nil), false},
		{"int number", Stage(KindHighpass, map[string]any{"freq": 100}), false},
		{"float number", Stage(KindLimit, map[string]any{"limit": 0.8}), false},
		{"enum ok", Stage(KindDenoise, map[string]any{"nt": "v"}), false},
		{"bool ok", Stage(KindGain, map[string]any{"auto": true}), false},
		{"unknown kind", Stage("reverb", nil), true},
		{"unknown param", Stage(KindHighpass, map[string]any{"cutoff": 100}), true},
		{"below range", Stage(KindHighpass, map[string]any{"freq": 1}), true},
		{"above range", Stage(KindLimit, map[string]any{"limit": 2}), true},
		{"wrong type", Stage(KindNormalize, map[string]any{"target": "-16"}), true},
		{"enum mismatch", Stage(KindDenoise, map[string]any{"nt": "x"}), true},
		{"bool as string", Stage(KindDenoise, map[string]any{"adaptive": "yes"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stage.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidStage), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStageAccessorsFallBackToDefaults(t *testing.T) {
	s := Stage(KindCompress, map[string]any{"ratio": 5})
	assert.Equal(t, 5.0, s.Float("ratio"))
	assert.Equal(t, -20.0, s.Float("threshold"))

	d := Stage(KindDenoise, nil)
	assert.Equal(t, "w", d.String("nt"))
	assert.False(t, d.Bool("adaptive"))
}

func TestSupports(t *testing.T) {
	assert.True(t, KindDenoise.Supports("wav"))
	assert.True(t, KindDenoise.Supports("MP4"))
	assert.True(t, KindTrimSilence.Supports(".flac"))
	assert.False(t, KindTrimSilence.Supports("mp4"))
	assert.False(t, KindNormalize.Supports("txt"))
}

func TestDescribe(t *testing.T) {
	s := Stage(KindCompress, map[string]any{"threshold": -20, "ratio": 3})
	assert.Equal(t, "compress(ratio=3,threshold=-20)", s.Describe())
	assert.Equal(t, "limit", Stage(KindLimit, nil).Describe())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := `presets:
  - name: podcast
    description: speech for podcasts
    output_format: wav
    stages:
      - kind: highpass
        params: {freq: 100}
      - kind: denoise
        params: {nr: 10.5, adaptive: true}
      - kind: normalize
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	presets, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, presets, 1)
	p := presets[0]
	assert.Equal(t, "podcast", p.Name)
	assert.Equal(t, "wav", p.OutputFormat)
	require.Len(t, p.Stages, 3)
	assert.Equal(t, 100.0, p.Stages[0].Float("freq"))
	assert.Equal(t, 10.5, p.Stages[1].Float("nr"))
	assert.True(t, p.Stages[1].Bool("adaptive"))
	assert.Equal(t, -16.0, p.Stages[2].Float("target"))
}

func TestLoadRegistry_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := `presets:
  - name: light
    stages:
      - kind: limit
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := LoadRegistry(path)
	require.NoError(t, err)
	p, err := r.Resolve("light")
	require.NoError(t, err)
	assert.Len(t, p.Stages, 1)
	assert.Len(t, r.Names(), 4)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("presets: []"))
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = Parse([]byte("presets:\n  - name: p\n    stages:\n      - kind: gain\n        params: {db: 99}\n"))
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = Parse([]byte("presets: [oops"))
	assert.Error(t, err)
}

func TestParseBands(t *testing.T) {
	bands, err := ParseBands("300:4; 1000:-2.5")
	require.NoError(t, err)
	assert.Equal(t, []Band{{Freq: 300, Gain: 4}, {Freq: 1000, Gain: -2.5}}, bands)

	for _, bad := range []string{"", "300", "abc:1", "300:x", "0:1", "300:99"} {
		_, err := ParseBands(bad)
		assert.ErrorIs(t, err, ErrInvalidStage, "bands %q", bad)
	}

	err = Stage(KindEqualize, map[string]any{"bands": "300"}).Validate()
	assert.ErrorIs(t, err, ErrInvalidStage)
}
