package render

import (
	"fmt"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/signal"
	"github.com/dudk/sequencer/song"
)

// PrepareAudio patches module inputs from their sources. Sources of the
// same track are read directly, other tracks are read under their read
// lock. Input ports without bindings are silenced.
func PrepareAudio(tr *song.Track, index int, c *Context, contexts []*Context) error {
	m := c.Modules[index]
	inputs := tr.Modules[index].AudioInputs
	for port := range m.In {
		if !bound(inputs, port) {
			for ch := range m.In[port].Buffer {
				m.In[port].SetConstant(ch, 0)
			}
		}
	}
	for _, in := range inputs {
		if in.DstPort < 0 || in.DstPort >= len(m.In) {
			return bindingError(c.Track, index, "destination port %d doesn't exist", in.DstPort)
		}
		dst := &m.In[in.DstPort]
		if in.SrcTrack == c.Track {
			src, ok := c.output(in.SrcModule, in.SrcPort)
			if !ok {
				return bindingError(c.Track, index, "source module %d port %d doesn't exist", in.SrcModule, in.SrcPort)
			}
			route(dst, src, c.Frames)
			continue
		}
		if in.SrcTrack < 0 || in.SrcTrack >= len(contexts) {
			return bindingError(c.Track, index, "source track %d doesn't exist", in.SrcTrack)
		}
		other := contexts[in.SrcTrack]
		if !other.tryRLock(c.ContentionTimeout) {
			return fmt.Errorf("track %d module %d reading track %d: %w", c.Track, index, in.SrcTrack, sequencer.ErrCrossTrackContention)
		}
		src, ok := other.output(in.SrcModule, in.SrcPort)
		if ok {
			route(dst, src, c.Frames)
		}
		other.RUnlock()
		if !ok {
			return bindingError(c.Track, index, "source track %d module %d port %d doesn't exist", in.SrcTrack, in.SrcModule, in.SrcPort)
		}
	}
	return nil
}

// route copies source port into destination. Constant channels are
// broadcast from their single sample and stay marked constant.
func route(dst *plugin.Port, src plugin.Port, frames int) {
	for ch := range dst.Buffer {
		if ch >= len(src.Buffer) {
			dst.SetConstant(ch, 0)
			continue
		}
		if src.ConstantMask.Has(ch) {
			signal.Broadcast(dst.Buffer[ch][:frames], src.Buffer[ch][0])
			dst.ConstantMask = dst.ConstantMask.Set(ch)
			continue
		}
		copy(dst.Buffer[ch][:frames], src.Buffer[ch][:frames])
		dst.ConstantMask = dst.ConstantMask.Clear(ch)
	}
}

func bound(inputs []song.AudioInput, port int) bool {
	for _, in := range inputs {
		if in.DstPort == port {
			return true
		}
	}
	return false
}

func bindingError(track, module int, format string, args ...interface{}) error {
	return &sequencer.BindingError{
		Track:  track,
		Module: module,
		Reason: fmt.Sprintf(format, args...),
	}
}
