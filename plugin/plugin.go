// Package plugin defines the capability interface the engine uses to drive
// sound-processing plugins. Every native format provides its own variant
// and the engine depends only on this interface.
package plugin

import (
	"github.com/dudk/sequencer/signal"
)

const (
	// MinFrames is the smallest block a plugin is activated for.
	MinFrames = 64
	// MaxFrames is the largest block a plugin is activated for.
	MaxFrames = 4096
)

// Plugin is a loaded plugin instance.
type Plugin interface {
	// Info describes the instance.
	Info() Info
	// Activate prepares the instance for the provided rates and block sizes.
	Activate(sampleRate float64, minFrames, maxFrames int) error
	StartProcessing() error
	StopProcessing()
	// Process renders a single block. Returned error is fatal for this
	// module in this block.
	Process(*Process) error
	// Destroy releases the instance. It must not be used afterwards.
	Destroy()
}

// Info describes plugin instance.
type Info struct {
	Name string
	// Inputs and Outputs are the number of audio ports.
	Inputs  int
	Outputs int
	Params  int
}

// Process holds all data passed into a single process call.
type Process struct {
	FrameCount int
	SteadyTime int64
	Transport  Transport
	Events     []Event
	In         []Port
	Out        []Port
}

// Transport describes playback state of the block.
type Transport struct {
	Playing bool
	BPM     float64
	LPB     int
	// Position is the play window start in ticks.
	Position int
}

// Port is a multi-channel audio port. When a channel bit is set in
// ConstantMask, the whole channel block equals its first sample.
type Port struct {
	Buffer       signal.Float32
	ConstantMask signal.ConstantMask
}

// EventKind is a type of plugin event.
type EventKind int

const (
	// NoteOn starts the note.
	NoteOn EventKind = iota
	// NoteOff releases the note.
	NoteOff
	// ParamValue sets parameter value.
	ParamValue
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case ParamValue:
		return "ParamValue"
	}
	return "Unknown"
}

// Event is a timed plugin event. Frame is the offset inside the block.
type Event struct {
	Kind     EventKind
	Frame    int
	Channel  uint8
	Key      uint8
	Velocity uint8
	Param    uint32
	// Value is normalized to [0, 1].
	Value float64
}

// NewPorts allocates ports of equal dimensions.
func NewPorts(n, numChannels, frames int) []Port {
	ports := make([]Port, n)
	for i := range ports {
		ports[i].Buffer = signal.Alloc(numChannels, frames)
	}
	return ports
}

// Value returns the channel value at frame respecting constant mask.
func (p Port) Value(ch, frame int) float32 {
	if p.ConstantMask.Has(ch) {
		return p.Buffer[ch][0]
	}
	return p.Buffer[ch][frame]
}

// SetConstant broadcasts value into the channel and marks it constant.
func (p *Port) SetConstant(ch int, v float32) {
	signal.Broadcast(p.Buffer[ch], v)
	p.ConstantMask = p.ConstantMask.Set(ch)
}
