// Package render is the track render engine. It translates the timeline
// into plugin events for the current block, routes audio between modules
// and tracks and drives module processing.
package render

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/signal"
	"github.com/dudk/sequencer/song"
)

// DefaultContentionTimeout limits waiting for another track context.
const DefaultContentionTimeout = 2 * time.Millisecond

type (
	// Context is per-track render state. It's created once per track and
	// reused every block. Only the owning track render writes it, other
	// tracks take read lock to route audio from its modules.
	Context struct {
		sync.RWMutex
		Track       int
		NumChannels int
		Frames      int
		// Buffer is the track output of the last block.
		Buffer signal.Float32

		Playing    bool
		BPM        float64
		SampleRate int
		LPB        int
		Window     song.Range
		Loop       song.Range
		SteadyTime int64

		// ContentionTimeout limits cross-track read lock wait.
		ContentionTimeout time.Duration

		// Held is note held by every lane. It persists across blocks.
		Held HeldKeys
		// Events is the block event queue. Events queued between blocks
		// come first.
		Events []Event
		// Modules are index-aligned with track modules.
		Modules []*Module
	}

	// Module is the render state of a single plugin instance.
	Module struct {
		Plugin plugin.Plugin
		In     []plugin.Port
		Out    []plugin.Port

		events  []plugin.Event
		process plugin.Process
	}

	// HeldKeys maps lane to the currently held key.
	HeldKeys map[int]uint8
)

// NewContext allocates context for a track.
func NewContext(track, numChannels, frames int) *Context {
	return &Context{
		Track:             track,
		NumChannels:       numChannels,
		Frames:            frames,
		Buffer:            signal.Alloc(numChannels, frames),
		ContentionTimeout: DefaultContentionTimeout,
		Held:              make(HeldKeys),
	}
}

// NewModule allocates ports for plugin instance. Plugins without declared
// ports get one input and one output port.
func NewModule(p plugin.Plugin, numChannels, frames int) *Module {
	inputs, outputs := Ports(p)
	return &Module{
		Plugin: p,
		In:     plugin.NewPorts(inputs, numChannels, frames),
		Out:    plugin.NewPorts(outputs, numChannels, frames),
	}
}

// Ports returns number of input and output ports allocated for the plugin.
// Every module has at least one of each.
func Ports(p plugin.Plugin) (inputs, outputs int) {
	info := p.Info()
	return max(info.Inputs, 1), max(info.Outputs, 1)
}

// Begin copies block parameters into context. Buffers are reallocated only
// when dimensions change.
func (c *Context) Begin(s *song.Song, numChannels, frames int, steadyTime int64) {
	if numChannels != c.NumChannels || frames != c.Frames {
		c.resize(numChannels, frames)
	}
	c.Playing = s.Playing
	c.BPM = s.BPM
	c.SampleRate = s.SampleRate
	c.LPB = s.LPB
	c.Window = s.PlayPosition
	c.Loop = s.Loop
	c.SteadyTime = steadyTime
}

func (c *Context) resize(numChannels, frames int) {
	c.NumChannels = numChannels
	c.Frames = frames
	c.Buffer = signal.Alloc(numChannels, frames)
	for _, m := range c.Modules {
		m.In = plugin.NewPorts(len(m.In), numChannels, frames)
		m.Out = plugin.NewPorts(len(m.Out), numChannels, frames)
	}
}

// NoteOn queues live note start for the next block.
func (c *Context) NoteOn(key, velocity uint8) {
	c.Events = append(c.Events, Event{Kind: NoteOn, Key: key, Velocity: velocity})
}

// NoteOff queues live note release for the next block.
func (c *Context) NoteOff(key uint8) {
	c.Events = append(c.Events, Event{Kind: NoteOff, Key: key})
}

// AllNotesOff queues release of every held key. Held keys are cleared
// immediately, so released keys cannot be released again.
func (c *Context) AllNotesOff() {
	lanes := make([]int, 0, len(c.Held))
	for lane := range c.Held {
		lanes = append(lanes, lane)
	}
	sort.Ints(lanes)
	keys := make([]uint8, 0, len(lanes))
	for _, lane := range lanes {
		keys = append(keys, c.Held[lane])
		delete(c.Held, lane)
	}
	c.Events = append(c.Events, Event{Kind: NoteAllOff, Keys: keys})
}

// output returns module output port. Caller must hold the lock.
func (c *Context) output(module, port int) (plugin.Port, bool) {
	if module < 0 || module >= len(c.Modules) {
		return plugin.Port{}, false
	}
	m := c.Modules[module]
	if port < 0 || port >= len(m.Out) {
		return plugin.Port{}, false
	}
	return m.Out[port], true
}

// tryRLock takes the read lock, retrying until timeout.
func (c *Context) tryRLock(timeout time.Duration) bool {
	if c.TryRLock() {
		return true
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		runtime.Gosched()
		if c.TryRLock() {
			return true
		}
	}
	return false
}

// collect copies first output port of the last module into track buffer.
func (c *Context) collect() {
	if len(c.Modules) == 0 {
		c.Buffer.Clear()
		return
	}
	out := c.Modules[len(c.Modules)-1].Out[0]
	for ch := range c.Buffer {
		if ch >= len(out.Buffer) {
			signal.Broadcast(c.Buffer[ch], 0)
			continue
		}
		if out.ConstantMask.Has(ch) {
			signal.Broadcast(c.Buffer[ch], out.Buffer[ch][0])
			continue
		}
		copy(c.Buffer[ch], out.Buffer[ch])
	}
}

// SamplesPerTick returns number of frames in one tick.
func SamplesPerTick(sampleRate int, bpm float64, lpb int) float64 {
	if bpm <= 0 || lpb <= 0 {
		return 0
	}
	return float64(sampleRate) * 60 / (bpm * float64(lpb) * song.TicksPerLine)
}

// FrameOf converts tick offset into frame offset inside the block.
func FrameOf(ticks int, samplesPerTick float64, frames int) int {
	f := int(float64(ticks) * samplesPerTick)
	switch {
	case f < 0:
		return 0
	case f >= frames:
		if frames == 0 {
			return 0
		}
		return frames - 1
	}
	return f
}
