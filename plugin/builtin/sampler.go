package builtin

import (
	"math"

	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/signal"
	"github.com/dudk/sequencer/wav"
)

// SamplerGain is the output gain parameter.
const SamplerGain uint32 = 0

// sampleRootKey plays the sample at its recorded pitch.
const sampleRootKey = 60

// Sampler plays wav sample, pitched by note key. It's monophonic: new
// note restarts playback.
type Sampler struct {
	path       string
	sampleRate float64
	sample     signal.Float32
	// ratio is the sample rate ratio of the file and the host.
	ratio  float64
	params params

	playing bool
	key     uint8
	pos     float64
	step    float64
	amp     float64
}

// NewSampler returns sampler for the wav file. File is read on Activate.
func NewSampler(path string) *Sampler {
	return &Sampler{path: path, params: params{1}}
}

// Info implements plugin.Plugin.
func (s *Sampler) Info() plugin.Info {
	return plugin.Info{Name: "sampler", Outputs: 1, Params: len(s.params)}
}

// Activate implements plugin.Plugin.
func (s *Sampler) Activate(sampleRate float64, minFrames, maxFrames int) error {
	b, fileRate, err := wav.Load(s.path)
	if err != nil {
		return err
	}
	s.sample = b
	s.sampleRate = sampleRate
	s.ratio = float64(fileRate) / sampleRate
	return nil
}

// StartProcessing implements plugin.Plugin.
func (s *Sampler) StartProcessing() error { return nil }

// StopProcessing implements plugin.Plugin.
func (s *Sampler) StopProcessing() { s.playing = false }

// Destroy implements plugin.Plugin.
func (s *Sampler) Destroy() { s.sample = nil }

// Process implements plugin.Plugin.
func (s *Sampler) Process(p *plugin.Process) error {
	if len(p.Out) == 0 {
		return nil
	}
	out := &p.Out[0]
	if !s.playing && len(p.Events) == 0 {
		for ch := range out.Buffer {
			out.SetConstant(ch, 0)
		}
		return nil
	}
	out.ConstantMask = 0
	next := 0
	size := s.sample.Size()
	for i := 0; i < p.FrameCount; i++ {
		for ; next < len(p.Events) && p.Events[next].Frame <= i; next++ {
			s.handle(p.Events[next])
		}
		if s.playing && int(s.pos) >= size-1 {
			s.playing = false
		}
		for ch := range out.Buffer {
			if !s.playing {
				out.Buffer[ch][i] = 0
				continue
			}
			src := s.sample[ch%s.sample.NumChannels()]
			idx := int(s.pos)
			frac := float32(s.pos - float64(idx))
			v := src[idx] + (src[idx+1]-src[idx])*frac
			out.Buffer[ch][i] = v * float32(s.amp*s.params[SamplerGain])
		}
		if s.playing {
			s.pos += s.step
		}
	}
	for ; next < len(p.Events); next++ {
		s.handle(p.Events[next])
	}
	return nil
}

func (s *Sampler) handle(e plugin.Event) {
	switch e.Kind {
	case plugin.NoteOn:
		if s.sample.Size() < 2 {
			return
		}
		s.playing = true
		s.key = e.Key
		s.pos = 0
		s.step = s.ratio * math.Pow(2, (float64(e.Key)-sampleRootKey)/12)
		s.amp = float64(e.Velocity) / 127
	case plugin.NoteOff:
		if s.key == e.Key {
			s.playing = false
		}
	default:
		s.params.apply(e)
	}
}
