package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadFile reads presets from a YAML file.
//
//	presets:
//	  - name: podcast
//	    output_format: wav
//	    stages:
//	      - kind: denoise
//	        params: {nr: 10}
//	      - kind: normalize
func LoadFile(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	return Parse(data)
}

// Parse decodes presets from YAML and validates each of them.
func Parse(data []byte) ([]Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse preset file: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, fmt.Errorf("%w: preset file defines no presets", ErrInvalidStage)
	}
	for _, p := range f.Presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Presets, nil
}

// LoadRegistry builds a registry of the built-in presets, overridden and
// extended by the presets in path when path is not empty.
func LoadRegistry(path string) (*Registry, error) {
	presets := Builtin()
	if path != "" {
		extra, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		presets = append(presets, extra...)
	}
	return NewRegistry(presets...)
}
