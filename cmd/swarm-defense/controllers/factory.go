package controllers

import (
	"fmt"
	"strings"

	"github.com/picogrid/swarm-defense/pkg/logger"
)

// prefixes maps the accepted key prefixes to canonical algorithm keys
var prefixes = []struct {
	prefix string
	key    string
}{
	{"cbba", AlgorithmCBBA},
	{"cvt", AlgorithmCVT},
	{"qipfd", AlgorithmQIPFD},
	{"flocking", AlgorithmFlocking},
	{"adaptive", AlgorithmAdaptiveShield},
}

// Factory builds controllers from an immutable preset table
type Factory struct {
	presets PresetTable
}

// NewFactory creates a factory over presets
func NewFactory(presets PresetTable) *Factory {
	return &Factory{presets: presets}
}

// Resolve maps a requested key to a canonical algorithm key. Unknown keys
// resolve to the default strategy with fellBack set.
func (f *Factory) Resolve(key string) (resolved string, fellBack bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if _, ok := f.presets.Get(k); ok {
		return k, false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(k, p.prefix) {
			if _, ok := f.presets.Get(p.key); ok {
				return p.key, false
			}
		}
	}
	return AlgorithmAdaptiveShield, true
}

// Build creates the controller for key with overrides merged into its preset.
// Unknown keys fall back to the default strategy with a warning. Build only
// fails when the table cannot provide any preset at all.
func (f *Factory) Build(key string, overrides Overrides, opts ...Option) (Controller, error) {
	resolved, fellBack := f.Resolve(key)
	if fellBack {
		logger.Warnf("Unknown swarm algorithm %q, falling back to %s", key, resolved)
	}

	params, ok := f.presets.Get(resolved)
	if !ok {
		if f.presets.Len() == 0 {
			return nil, fmt.Errorf("no swarm algorithms available")
		}
		params = GenericParams()
	}
	params = params.Apply(overrides)

	o := defaultBuildOptions()
	for _, opt := range opts {
		opt(&o)
	}

	switch resolved {
	case AlgorithmCBBA:
		return newCBBA(resolved, params, o), nil
	case AlgorithmCVT:
		return newCVTCBF(resolved, params, o), nil
	case AlgorithmQIPFD:
		return newQIPFD(resolved, params, o), nil
	case AlgorithmFlocking:
		return newFlocking(resolved, params, o), nil
	default:
		return newAdaptiveShield(resolved, params, o), nil
	}
}

// Algorithms lists every selectable algorithm with its label
func (f *Factory) Algorithms() []AlgorithmInfo {
	keys := f.presets.Keys()
	out := make([]AlgorithmInfo, 0, len(keys))
	for _, k := range keys {
		p, _ := f.presets.Get(k)
		out = append(out, AlgorithmInfo{Value: k, Label: p.Label, Description: p.Description})
	}
	return out
}
