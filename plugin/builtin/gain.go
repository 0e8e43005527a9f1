package builtin

import (
	"github.com/viterin/vek/vek32"

	"github.com/dudk/sequencer/plugin"
)

// GainLevel is the gain parameter, 1 is +6dB.
const GainLevel uint32 = 0

// Gain multiplies first input port into first output port.
type Gain struct {
	params params
}

// NewGain returns gain effect at unity.
func NewGain() *Gain {
	return &Gain{params: params{0.5}}
}

// Info implements plugin.Plugin.
func (g *Gain) Info() plugin.Info {
	return plugin.Info{Name: "gain", Inputs: 1, Outputs: 1, Params: len(g.params)}
}

// Activate implements plugin.Plugin.
func (g *Gain) Activate(float64, int, int) error { return nil }

// StartProcessing implements plugin.Plugin.
func (g *Gain) StartProcessing() error { return nil }

// StopProcessing implements plugin.Plugin.
func (g *Gain) StopProcessing() {}

// Destroy implements plugin.Plugin.
func (g *Gain) Destroy() {}

// Process implements plugin.Plugin. Automation is applied per block.
func (g *Gain) Process(p *plugin.Process) error {
	for _, e := range p.Events {
		g.params.apply(e)
	}
	if len(p.Out) == 0 {
		return nil
	}
	out := &p.Out[0]
	if len(p.In) == 0 {
		for ch := range out.Buffer {
			out.SetConstant(ch, 0)
		}
		return nil
	}
	in := p.In[0]
	level := float32(g.params[GainLevel] * 2)
	for ch := range out.Buffer {
		if ch >= len(in.Buffer) {
			out.SetConstant(ch, 0)
			continue
		}
		if in.ConstantMask.Has(ch) {
			out.SetConstant(ch, in.Buffer[ch][0]*level)
			continue
		}
		vek32.MulNumber_Into(out.Buffer[ch][:p.FrameCount], in.Buffer[ch][:p.FrameCount], level)
		out.ConstantMask = out.ConstantMask.Clear(ch)
	}
	return nil
}
