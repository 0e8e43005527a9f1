package render

import (
	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/song"
)

// ProcessModule delivers events, routes audio and calls plugin process for
// the module. Plugin failure is returned as *sequencer.PluginError.
func ProcessModule(tr *song.Track, index int, c *Context, contexts []*Context) error {
	m := c.Modules[index]
	m.events = PrepareEvents(c.Events, index, SamplesPerTick(c.SampleRate, c.BPM, c.LPB), c.Frames, m.events)
	if err := PrepareAudio(tr, index, c, contexts); err != nil {
		return err
	}
	m.process = plugin.Process{
		FrameCount: c.Frames,
		SteadyTime: c.SteadyTime,
		Transport: plugin.Transport{
			Playing:  c.Playing,
			BPM:      c.BPM,
			LPB:      c.LPB,
			Position: c.Window.Start,
		},
		Events: m.events,
		In:     m.In,
		Out:    m.Out,
	}
	if err := m.Plugin.Process(&m.process); err != nil {
		return &sequencer.PluginError{Track: c.Track, Module: index, Err: err}
	}
	return nil
}

// RenderTrack renders one block of the track into context buffer. The
// context is locked for writing until the block is done. Failed track
// outputs silence.
func RenderTrack(tr *song.Track, c *Context, contexts []*Context) error {
	c.Lock()
	defer c.Unlock()
	defer func() {
		c.Events = c.Events[:0]
	}()

	if len(c.Modules) != len(tr.Modules) {
		c.Buffer.Clear()
		return bindingError(c.Track, -1, "%d modules loaded for %d track modules", len(c.Modules), len(tr.Modules))
	}
	var err error
	if c.Events, err = Translate(tr, c.Window, c.Loop, c.Held, c.Events); err != nil {
		if be, ok := err.(*sequencer.BindingError); ok {
			be.Track = c.Track
		}
		c.Buffer.Clear()
		return err
	}
	for i := range c.Modules {
		if err := ProcessModule(tr, i, c, contexts); err != nil {
			c.Buffer.Clear()
			return err
		}
	}
	c.collect()
	return nil
}
