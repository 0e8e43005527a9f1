package builtin

import (
	"errors"
	"math"

	"github.com/dudk/sequencer/plugin"
)

const (
	// SineGain is the output gain parameter.
	SineGain uint32 = iota
	// SineRelease is the release time parameter, 1 is one second.
	SineRelease
)

// Sine is a polyphonic sine synth.
type Sine struct {
	sampleRate float64
	params     params
	voices     []voice
}

type voice struct {
	key   uint8
	phase float64
	step  float64
	amp   float64
	// decay is subtracted from amp every frame once the note is released.
	decay float64
}

// NewSine returns new sine synth.
func NewSine() *Sine {
	return &Sine{params: params{0.5, 0.05}}
}

// Info implements plugin.Plugin.
func (s *Sine) Info() plugin.Info {
	return plugin.Info{Name: "sine", Outputs: 1, Params: len(s.params)}
}

// Activate implements plugin.Plugin.
func (s *Sine) Activate(sampleRate float64, minFrames, maxFrames int) error {
	if sampleRate <= 0 {
		return errors.New("sample rate should be > 0")
	}
	s.sampleRate = sampleRate
	return nil
}

// StartProcessing implements plugin.Plugin.
func (s *Sine) StartProcessing() error { return nil }

// StopProcessing implements plugin.Plugin.
func (s *Sine) StopProcessing() { s.voices = s.voices[:0] }

// Destroy implements plugin.Plugin.
func (s *Sine) Destroy() {}

// Process implements plugin.Plugin.
func (s *Sine) Process(p *plugin.Process) error {
	if len(p.Out) == 0 {
		return nil
	}
	out := &p.Out[0]
	if len(s.voices) == 0 && len(p.Events) == 0 {
		for ch := range out.Buffer {
			out.SetConstant(ch, 0)
		}
		return nil
	}
	out.ConstantMask = 0
	next := 0
	for i := 0; i < p.FrameCount; i++ {
		for ; next < len(p.Events) && p.Events[next].Frame <= i; next++ {
			s.handle(p.Events[next])
		}
		var v float64
		for j := range s.voices {
			vc := &s.voices[j]
			v += math.Sin(2*math.Pi*vc.phase) * vc.amp
			vc.phase += vc.step
			if vc.phase >= 1 {
				vc.phase--
			}
			if vc.decay > 0 {
				vc.amp -= vc.decay
			}
		}
		v *= s.params[SineGain]
		for ch := range out.Buffer {
			out.Buffer[ch][i] = float32(v)
		}
		s.dropSilent()
	}
	for ; next < len(p.Events); next++ {
		s.handle(p.Events[next])
	}
	return nil
}

func (s *Sine) handle(e plugin.Event) {
	switch e.Kind {
	case plugin.NoteOn:
		s.voices = append(s.voices, voice{
			key:  e.Key,
			step: frequency(e.Key) / s.sampleRate,
			amp:  float64(e.Velocity) / 127,
		})
	case plugin.NoteOff:
		release := s.params[SineRelease] * s.sampleRate
		for i := range s.voices {
			vc := &s.voices[i]
			if vc.key == e.Key && vc.decay == 0 {
				vc.decay = vc.amp / math.Max(release, 1)
				break
			}
		}
	default:
		s.params.apply(e)
	}
}

func (s *Sine) dropSilent() {
	n := 0
	for _, vc := range s.voices {
		if vc.decay > 0 && vc.amp <= 0 {
			continue
		}
		s.voices[n] = vc
		n++
	}
	s.voices = s.voices[:n]
}

// frequency returns equal-tempered frequency of MIDI key.
func frequency(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}
