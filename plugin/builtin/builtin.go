// Package builtin provides plugins implemented in Go. They are addressed
// with "builtin:" paths:
//
//	builtin:sine               polyphonic sine synth
//	builtin:gain               stereo gain effect
//	builtin:sampler:<file.wav> sample player
package builtin

import (
	"fmt"
	"strings"

	"github.com/dudk/sequencer/plugin"
)

// Prefix is the path scheme of builtin plugins.
const Prefix = "builtin:"

// Load creates new builtin plugin instance.
func Load(path string) (plugin.Plugin, error) {
	name := strings.TrimPrefix(path, Prefix)
	switch {
	case name == "sine":
		return NewSine(), nil
	case name == "gain":
		return NewGain(), nil
	case strings.HasPrefix(name, "sampler:"):
		return NewSampler(strings.TrimPrefix(name, "sampler:")), nil
	}
	return nil, fmt.Errorf("%w: %v", plugin.ErrUnknownFormat, path)
}

// Register adds builtin loader to the registry.
func Register(r *plugin.Registry) {
	r.Prefix(Prefix, Load)
}

// Names returns paths of builtin plugins without arguments.
func Names() []string {
	return []string{Prefix + "sine", Prefix + "gain", Prefix + "sampler:<file.wav>"}
}

// params keeps normalized parameter values.
type params []float64

func (p params) apply(e plugin.Event) {
	if e.Kind == plugin.ParamValue && int(e.Param) < len(p) {
		p[e.Param] = e.Value
	}
}
