// Package mixer sums track outputs into interleaved device buffer.
package mixer

import (
	"github.com/viterin/vek/vek32"

	"github.com/dudk/sequencer/signal"
)

// Input is a track output with its mixer state.
type Input struct {
	Buffer signal.Float32
	// Volume is linear gain.
	Volume float32
	// Pan is stereo position, 0 is left, 0.5 is center, 1 is right.
	Pan  float32
	Mute bool
	Solo bool
}

// Mixer sums inputs. Its buffers are reused across blocks.
type Mixer struct {
	acc signal.Float32
	tmp []float32
}

// New returns new mixer.
func New() *Mixer {
	return &Mixer{}
}

// Mix writes the sum of inputs into interleaved output. Muted inputs are
// skipped. When any input is soloed, only soloed inputs are summed.
func (m *Mixer) Mix(out []float32, numChannels int, inputs []Input) {
	frames := len(out) / numChannels
	m.ensure(numChannels, frames)
	m.acc.Clear()

	solo := false
	for _, in := range inputs {
		if in.Solo {
			solo = true
			break
		}
	}
	for _, in := range inputs {
		if in.Mute || (solo && !in.Solo) {
			continue
		}
		for ch := 0; ch < numChannels && ch < len(in.Buffer); ch++ {
			g := Gain(in.Volume, in.Pan, ch, numChannels)
			if g == 0 {
				continue
			}
			vek32.MulNumber_Into(m.tmp, in.Buffer[ch][:frames], g)
			vek32.Add_Inplace(m.acc[ch], m.tmp)
		}
	}
	m.acc.Interleave(out, numChannels)
}

func (m *Mixer) ensure(numChannels, frames int) {
	if m.acc.NumChannels() == numChannels && m.acc.Size() == frames {
		return
	}
	m.acc = signal.Alloc(numChannels, frames)
	m.tmp = make([]float32, frames)
}

// Gain returns channel gain with linear pan law. Center pan keeps both
// stereo channels at full volume. Pan is ignored for non-stereo output.
func Gain(volume, pan float32, ch, numChannels int) float32 {
	if numChannels != 2 {
		return volume
	}
	var p float32
	if ch == 0 {
		p = 2 * (1 - pan)
	} else {
		p = 2 * pan
	}
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return volume * p
}
