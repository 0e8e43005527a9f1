// Package mock provides plugin mocks and allows to execute engine
// integration tests without native plugins.
package mock

import (
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/signal"
)

// Plugin mocks a plugin.Plugin interface. Output is either a copy of the
// first input port (Passthrough) or Value written to every channel of
// every output port. Plugin state is not thread-safe, so it should not be
// checked while the engine is running.
type Plugin struct {
	counter
	Name        string
	Inputs      int
	Outputs     int
	Value       float32
	Constant    bool
	Passthrough bool
	// Record enables capture of events and inputs of every call.
	Record      bool
	ErrorOnCall error
	Hooks

	events [][]plugin.Event
	inputs []plugin.Port
	params map[uint32]float64
}

// Hooks allows to mock plugin lifecycle.
type Hooks struct {
	Activated bool
	Started   bool
	Stopped   bool
	Destroyed bool

	SampleRate float64
	MaxFrames  int

	ErrorOnActivate error
	ErrorOnStart    error
}

// Info implements plugin.Plugin.
func (m *Plugin) Info() plugin.Info {
	return plugin.Info{
		Name:    m.Name,
		Inputs:  m.Inputs,
		Outputs: m.Outputs,
	}
}

// Activate implements plugin.Plugin.
func (m *Plugin) Activate(sampleRate float64, minFrames, maxFrames int) error {
	m.Activated = true
	m.SampleRate = sampleRate
	m.MaxFrames = maxFrames
	return m.ErrorOnActivate
}

// StartProcessing implements plugin.Plugin.
func (m *Plugin) StartProcessing() error {
	m.Started = true
	return m.ErrorOnStart
}

// StopProcessing implements plugin.Plugin.
func (m *Plugin) StopProcessing() {
	m.Stopped = true
}

// Destroy implements plugin.Plugin.
func (m *Plugin) Destroy() {
	m.Destroyed = true
}

// Process implements plugin.Plugin.
func (m *Plugin) Process(p *plugin.Process) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	for _, e := range p.Events {
		if e.Kind == plugin.ParamValue {
			if m.params == nil {
				m.params = make(map[uint32]float64)
			}
			m.params[e.Param] = e.Value
		}
	}
	if m.Record {
		m.events = append(m.events, append([]plugin.Event(nil), p.Events...))
		if len(p.In) > 0 {
			m.inputs = append(m.inputs, copyPort(p.In[0]))
		}
	}
	for i := range p.Out {
		out := &p.Out[i]
		for ch := range out.Buffer {
			switch {
			case m.Passthrough && len(p.In) > 0:
				in := p.In[0]
				copy(out.Buffer[ch], in.Buffer[ch])
				if in.ConstantMask.Has(ch) {
					out.ConstantMask = out.ConstantMask.Set(ch)
				} else {
					out.ConstantMask = out.ConstantMask.Clear(ch)
				}
			case m.Constant:
				out.SetConstant(ch, m.Value)
			default:
				for j := 0; j < p.FrameCount; j++ {
					out.Buffer[ch][j] = m.Value
				}
				out.ConstantMask = out.ConstantMask.Clear(ch)
			}
		}
	}
	m.advance(p.FrameCount)
	return nil
}

// Events returns events received by every recorded call.
func (m *Plugin) Events() [][]plugin.Event {
	return m.events
}

// RecordedInputs returns first input port of every recorded call.
func (m *Plugin) RecordedInputs() []plugin.Port {
	return m.inputs
}

// Param returns the last value set for parameter.
func (m *Plugin) Param(id uint32) (float64, bool) {
	v, ok := m.params[id]
	return v, ok
}

func copyPort(p plugin.Port) plugin.Port {
	c := plugin.Port{
		Buffer:       signal.Alloc(p.Buffer.NumChannels(), p.Buffer.Size()),
		ConstantMask: p.ConstantMask,
	}
	for ch := range p.Buffer {
		copy(c.Buffer[ch], p.Buffer[ch])
	}
	return c
}

// counter counts calls and frames.
type counter struct {
	calls  int
	frames int
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.calls++
	c.frames = c.frames + size
}

// Count returns calls and frames metrics.
func (c *counter) Count() (int, int) {
	return c.calls, c.frames
}
