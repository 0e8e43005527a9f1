// Package vst2 hosts VST2 plugins as engine modules.
package vst2

import (
	"math"
	"time"
	"unsafe"

	gomidi "gitlab.com/gomidi/midi/v2"
	"pipelined.dev/audio/vst2"
	"pipelined.dev/signal"

	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/song"
)

const timeSigNumerator = 4

// Plugin represents vst2 plugin instance.
type Plugin struct {
	vst    *vst2.VST
	plugin *vst2.Plugin
	name   string

	numChannels int
	sampleRate  float64
	maxFrames   int
	frames      int
	in, out     vst2.FloatBuffer
	timeInfo    vst2.TimeInfo
	midi        []vst2.MIDIEvent
	events      []vst2.Event
}

// Loader returns loader of vst2 plugins with provided number of channels.
func Loader(numChannels int) plugin.LoaderFunc {
	return func(path string) (plugin.Plugin, error) {
		return Open(path, numChannels)
	}
}

// Open loads vst2 library and creates new plugin instance.
func Open(path string, numChannels int) (*Plugin, error) {
	v, err := vst2.Open(path)
	if err != nil {
		return nil, err
	}
	p := &Plugin{
		vst:         v,
		name:        v.Name,
		numChannels: numChannels,
	}
	p.plugin = v.Plugin(p.callback)
	p.plugin.Start()
	return p, nil
}

// Info implements plugin.Plugin.
func (p *Plugin) Info() plugin.Info {
	return plugin.Info{
		Name:    p.name,
		Inputs:  1,
		Outputs: 1,
		Params:  p.plugin.NumParams(),
	}
}

// Activate sets sample rate and buffer size of the plugin.
func (p *Plugin) Activate(sampleRate float64, minFrames, maxFrames int) error {
	p.sampleRate = sampleRate
	p.maxFrames = maxFrames
	p.plugin.SetSampleRate(signal.Frequency(sampleRate))
	p.plugin.SetBufferSize(maxFrames)
	p.timeInfo = vst2.TimeInfo{
		SampleRate:         sampleRate,
		Tempo:              song.DefaultBPM,
		TimeSigNumerator:   timeSigNumerator,
		TimeSigDenominator: 4,
		Flags:              vst2.TempoValid | vst2.PpqPosValid | vst2.TimeSigValid,
	}
	return nil
}

// StartProcessing resumes the plugin.
func (p *Plugin) StartProcessing() error {
	p.plugin.Resume()
	return nil
}

// StopProcessing suspends the plugin.
func (p *Plugin) StopProcessing() {
	p.plugin.Suspend()
}

// Destroy closes plugin instance and unloads the library.
func (p *Plugin) Destroy() {
	p.freeBuffers()
	p.plugin.Close()
	p.vst.Close()
}

// Process sends events and renders the block. Parameter events are
// applied before the block since vst2 has no sample accurate automation.
func (p *Plugin) Process(d *plugin.Process) error {
	p.updateTime(d)
	p.allocBuffers(d.FrameCount)

	p.midi = p.midi[:0]
	for _, e := range d.Events {
		switch e.Kind {
		case plugin.NoteOn:
			p.midi = append(p.midi, midiEvent(e, gomidi.NoteOn(e.Channel, e.Key, e.Velocity)))
		case plugin.NoteOff:
			p.midi = append(p.midi, midiEvent(e, gomidi.NoteOff(e.Channel, e.Key)))
		case plugin.ParamValue:
			p.plugin.SetParamValue(int(e.Param), float32(e.Value))
		}
	}
	if len(p.midi) > 0 {
		p.events = p.events[:0]
		for i := range p.midi {
			p.events = append(p.events, &p.midi[i])
		}
		events := vst2.Events(p.events...)
		defer events.Free()
		p.plugin.Dispatch(vst2.PlugProcessEvents, 0, 0, unsafe.Pointer(events), 0)
	}

	for ch := 0; ch < p.numChannels; ch++ {
		dst := p.in.Channel(ch)
		if len(d.In) == 0 || ch >= len(d.In[0].Buffer) {
			for i := range dst {
				dst[i] = 0
			}
			continue
		}
		copy(dst, d.In[0].Buffer[ch][:d.FrameCount])
	}
	p.plugin.ProcessFloat(p.in, p.out)
	if len(d.Out) == 0 {
		return nil
	}
	out := &d.Out[0]
	for ch := range out.Buffer {
		copy(out.Buffer[ch][:d.FrameCount], p.out.Channel(ch%p.numChannels))
		out.ConstantMask = out.ConstantMask.Clear(ch)
	}
	return nil
}

func midiEvent(e plugin.Event, msg gomidi.Message) vst2.MIDIEvent {
	ev := vst2.MIDIEvent{DeltaFrames: int32(e.Frame)}
	copy(ev.Data[:], msg)
	return ev
}

func (p *Plugin) allocBuffers(frames int) {
	if frames == p.frames {
		return
	}
	p.freeBuffers()
	p.in = vst2.NewFloatBuffer(p.numChannels, frames)
	p.out = vst2.NewFloatBuffer(p.numChannels, frames)
	p.frames = frames
}

func (p *Plugin) freeBuffers() {
	if p.frames == 0 {
		return
	}
	p.in.Free()
	p.out.Free()
	p.frames = 0
}

// updateTime fills time info with block transport.
func (p *Plugin) updateTime(d *plugin.Process) {
	lpb := d.Transport.LPB
	if lpb <= 0 {
		lpb = song.DefaultLPB
	}
	ppqPos := float64(d.Transport.Position) / float64(song.TicksPerLine*lpb)
	p.timeInfo.SamplePos = float64(d.SteadyTime)
	p.timeInfo.NanoSeconds = float64(time.Now().UnixNano())
	p.timeInfo.PpqPos = ppqPos
	p.timeInfo.BarStartPos = math.Floor(ppqPos/timeSigNumerator) * timeSigNumerator
	if d.Transport.BPM > 0 {
		p.timeInfo.Tempo = d.Transport.BPM
	}
	p.timeInfo.Flags = vst2.TempoValid | vst2.PpqPosValid | vst2.TimeSigValid | vst2.BarsValid
	if d.Transport.Playing {
		p.timeInfo.Flags |= vst2.TransportPlaying
	}
}

// callback answers plugin requests to the host.
func (p *Plugin) callback(op vst2.HostOpcode, index int32, value int64, ptr unsafe.Pointer, opt float32) int64 {
	switch op {
	case vst2.HostGetSampleRate:
		return int64(p.sampleRate)
	case vst2.HostGetBufferSize:
		return int64(p.maxFrames)
	case vst2.HostGetTime:
		return int64(uintptr(unsafe.Pointer(&p.timeInfo)))
	case vst2.HostIdle:
		return 0
	}
	return 0
}
