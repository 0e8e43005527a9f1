// Package engine drives block rendering of a song. Driver owns the song,
// plugin instances and track contexts. It is called by audio device
// callback or offline renderer once per block.
package engine

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/metric"
	"github.com/dudk/sequencer/mixer"
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/render"
	"github.com/dudk/sequencer/song"
)

const (
	defaultNumChannels = 2
	defaultFrames      = 512
	defaultQueue       = 256
)

// ErrClosed is returned when closed driver is used.
var ErrClosed = errors.New("driver is closed")

// Driver renders song blocks. Process must be called from a single
// goroutine. Commands can be sent from any goroutine.
type Driver struct {
	log.Logger
	uid string

	song     *song.Song
	plugins  map[string]plugin.Plugin
	contexts []*render.Context
	layers   [][]int

	mixer  *mixer.Mixer
	inputs []mixer.Input

	commands      chan Command
	notifications chan Notification

	line       int
	steadyTime int64
	closed     bool
	measure    metric.MeasureFunc

	workers           int
	contentionTimeout time.Duration
	numChannels       int
	frames            int
	queue             int
}

// New creates driver for the song. Plugins are activated instances keyed
// by module ID, every module of the song must have one. Driver owns the
// plugins and destroys them when closed.
func New(s *song.Song, plugins map[string]plugin.Plugin, options ...Option) (*Driver, error) {
	d := Driver{
		Logger:            log.GetLogger(),
		uid:               sequencer.NewUID(),
		plugins:           make(map[string]plugin.Plugin),
		mixer:             mixer.New(),
		line:              -1,
		workers:           runtime.GOMAXPROCS(0),
		contentionTimeout: render.DefaultContentionTimeout,
		numChannels:       defaultNumChannels,
		frames:            defaultFrames,
		queue:             defaultQueue,
	}
	for _, option := range options {
		if err := option(&d); err != nil {
			closeAll(plugins)
			return nil, err
		}
	}
	if err := d.sync(s.Copy(), plugins); err != nil {
		return nil, fmt.Errorf("error creating driver: %w", err)
	}
	d.commands = make(chan Command, d.queue)
	d.notifications = make(chan Notification, d.queue)
	d.measure = metric.Meter(&d, s.SampleRate)
	d.Debug(fmt.Sprintf("driver %v created with %d tracks", d.uid, len(d.song.Tracks)))
	return &d, nil
}

// Send queues command for the next block. It never blocks and returns
// false if the queue is full.
func (d *Driver) Send(cmd Command) bool {
	select {
	case d.commands <- cmd:
		return true
	default:
		return false
	}
}

// Notifications returns channel of driver notifications. Notifications
// are dropped when the channel is full.
func (d *Driver) Notifications() <-chan Notification {
	return d.notifications
}

// Song returns a copy of the current song. It must not be called
// concurrently with Process.
func (d *Driver) Song() *song.Song {
	return d.song.Copy()
}

// SteadyTime returns number of frames rendered since driver creation.
func (d *Driver) SteadyTime() int64 {
	return d.steadyTime
}

// Process renders a block into interleaved output buffer. Pending
// commands are applied first, then the play position advances and every
// track is rendered and mixed. If render fails, the transport is stopped,
// held notes are released, output is silent and the error is returned.
func (d *Driver) Process(out []float32, numChannels int) error {
	if d.closed {
		return ErrClosed
	}
	if numChannels < 1 || len(out)%numChannels != 0 {
		return fmt.Errorf("invalid output buffer: %d samples for %d channels", len(out), numChannels)
	}
	started := time.Now()
	frames := len(out) / numChannels
	d.drain()

	s := d.song
	s.PlayPosition = Advance(s.PlayPosition, s.Loop, s.Playing, frames, s.SampleRate, s.BPM, s.LPB)
	if line := Line(s.PlayPosition.Start); line != d.line {
		d.line = line
		d.notify(LineChanged{Line: line})
	}
	for _, c := range d.contexts {
		c.Begin(s, numChannels, frames, d.steadyTime)
	}

	err := d.render()
	if err != nil {
		for i := range out {
			out[i] = 0
		}
		d.fail(err)
	} else {
		d.mix(out, numChannels)
	}
	d.steadyTime += int64(frames)
	d.measure(int64(frames), time.Since(started))
	return err
}

// render runs tracks layer by layer. Tracks of the same layer render in
// parallel. Remaining layers are skipped after a failure.
func (d *Driver) render() error {
	for _, layer := range d.layers {
		if len(layer) == 1 {
			t := layer[0]
			if err := render.RenderTrack(&d.song.Tracks[t], d.contexts[t], d.contexts); err != nil {
				return err
			}
			continue
		}
		var g errgroup.Group
		g.SetLimit(d.workers)
		errs := make([]error, len(layer))
		for i, t := range layer {
			g.Go(func() error {
				errs[i] = render.RenderTrack(&d.song.Tracks[t], d.contexts[t], d.contexts)
				return errs[i]
			})
		}
		if g.Wait() == nil {
			continue
		}
		var failed sequencer.Errors
		for _, err := range errs {
			if err != nil {
				failed = append(failed, err)
			}
		}
		return failed.Ret()
	}
	return nil
}

func (d *Driver) mix(out []float32, numChannels int) {
	d.inputs = d.inputs[:0]
	for t, c := range d.contexts {
		tr := &d.song.Tracks[t]
		d.inputs = append(d.inputs, mixer.Input{
			Buffer: c.Buffer,
			Volume: tr.Volume,
			Pan:    tr.Pan,
			Mute:   tr.Mute,
			Solo:   tr.Solo,
		})
	}
	d.mixer.Mix(out, numChannels, d.inputs)
}

func (d *Driver) fail(err error) {
	d.song.Playing = false
	// tracks of skipped layers still hold queued events
	for _, c := range d.contexts {
		c.Events = c.Events[:0]
	}
	d.allNotesOff()
	d.Error(fmt.Sprintf("driver %v render failed: %v", d.uid, err))
	d.notify(RenderFailed{Err: err})
}

func (d *Driver) allNotesOff() {
	for _, c := range d.contexts {
		c.AllNotesOff()
	}
}

func (d *Driver) notify(n Notification) {
	select {
	case d.notifications <- n:
	default:
		d.Debug(fmt.Sprintf("driver %v dropped notification %T", d.uid, n))
	}
}

// drain applies commands queued before the block. Commands sent during
// draining are left for the next block.
func (d *Driver) drain() {
	for i := len(d.commands); i > 0; i-- {
		cmd := <-d.commands
		if err := d.apply(cmd); err != nil {
			d.Warn(fmt.Sprintf("driver %v command %T failed: %v", d.uid, cmd, err))
			d.notify(CommandFailed{Command: cmd, Err: err})
		}
	}
}

func (d *Driver) apply(cmd Command) error {
	switch c := cmd.(type) {
	case Play:
		d.song.Playing = true
	case Stop:
		d.song.Playing = false
		d.allNotesOff()
	case Seek:
		if c.Line < 0 {
			return fmt.Errorf("invalid line: %d", c.Line)
		}
		tick := c.Line * song.TicksPerLine
		d.song.PlayPosition = song.Range{Start: tick, End: tick}
		d.line = -1
		d.allNotesOff()
	case SetSong:
		if c.Song == nil {
			closeAll(c.Plugins)
			return errors.New("nil song")
		}
		if err := d.sync(c.Song.Copy(), c.Plugins); err != nil {
			return err
		}
		d.line = -1
		d.notify(SongChanged{Song: d.song.Copy()})
	case SetItem:
		if err := d.setItem(c); err != nil {
			return err
		}
		d.notify(SongChanged{Song: d.song.Copy()})
	case NoteOn:
		ctx, err := d.context(c.Track)
		if err != nil {
			return err
		}
		ctx.NoteOn(c.Key, c.Velocity)
	case NoteOff:
		ctx, err := d.context(c.Track)
		if err != nil {
			return err
		}
		ctx.NoteOff(c.Key)
	case AddTrack:
		s := d.song.Copy()
		s.AddTrack()
		if err := d.sync(s, nil); err != nil {
			return err
		}
		d.notify(SongChanged{Song: d.song.Copy()})
	case AddModule:
		if err := d.addModule(c); err != nil {
			return err
		}
		d.notify(SongChanged{Song: d.song.Copy()})
	case SetLoop:
		if c.Loop.Start < 0 || c.Loop.End < 0 {
			return fmt.Errorf("invalid loop: %v", c.Loop)
		}
		d.song.Loop = c.Loop
	case SetMixer:
		if _, err := d.context(c.Track); err != nil {
			return err
		}
		if c.Volume < 0 || c.Pan < 0 || c.Pan > 1 {
			return fmt.Errorf("invalid mixer state: volume %v pan %v", c.Volume, c.Pan)
		}
		tr := &d.song.Tracks[c.Track]
		tr.Volume, tr.Pan, tr.Mute, tr.Solo = c.Volume, c.Pan, c.Mute, c.Solo
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
	return nil
}

func (d *Driver) context(track int) (*render.Context, error) {
	if track < 0 || track >= len(d.contexts) {
		return nil, fmt.Errorf("track %d out of range", track)
	}
	return d.contexts[track], nil
}

// setItem places the item and reverts the edit if it breaks the track.
func (d *Driver) setItem(c SetItem) error {
	if _, err := d.context(c.Track); err != nil {
		return err
	}
	var (
		prev *song.Item
		tr   = &d.song.Tracks[c.Track]
	)
	if c.Lane >= 0 && c.Lane < len(tr.Lanes) {
		if item, ok := tr.Lanes[c.Lane].Items[c.Line]; ok {
			prev = &item
		}
	}
	if err := d.song.SetItem(c.Track, c.Lane, c.Line, c.Item); err != nil {
		return err
	}
	if err := d.song.ValidateTrack(c.Track); err != nil {
		_ = d.song.SetItem(c.Track, c.Lane, c.Line, prev)
		return err
	}
	return nil
}

func (d *Driver) addModule(c AddModule) error {
	if c.Plugin == nil {
		return errors.New("nil plugin")
	}
	if c.Track < 0 || c.Track >= len(d.song.Tracks) {
		plugin.Close(c.Plugin)
		return fmt.Errorf("track %d out of range", c.Track)
	}
	if c.Module.ID == "" {
		c.Module.ID = sequencer.NewUID()
	}
	s := d.song.Copy()
	s.Tracks[c.Track].Modules = append(s.Tracks[c.Track].Modules, c.Module)
	return d.sync(s, map[string]plugin.Plugin{c.Module.ID: c.Plugin})
}

// sync makes the song current. Plugins from added take precedence over
// loaded ones. Loaded plugins not used by the song are destroyed. On
// failure the driver state is unchanged and added plugins are destroyed.
func (d *Driver) sync(s *song.Song, added map[string]plugin.Plugin) error {
	plugins, layers, err := d.resolve(s, added)
	if err != nil {
		for id, p := range added {
			if d.plugins[id] != p {
				plugin.Close(p)
			}
		}
		return err
	}

	contexts := make([]*render.Context, len(s.Tracks))
	for t, tr := range s.Tracks {
		var c *render.Context
		if t < len(d.contexts) {
			c = d.contexts[t]
		} else {
			c = render.NewContext(t, d.numChannels, d.frames)
			c.ContentionTimeout = d.contentionTimeout
		}
		modules := make([]*render.Module, len(tr.Modules))
		for m, mod := range tr.Modules {
			modules[m] = moduleOf(c, plugins[mod.ID])
		}
		c.Modules = modules
		contexts[t] = c
	}

	for id, p := range d.plugins {
		if plugins[id] != p {
			d.Debug(fmt.Sprintf("driver %v destroys module %v", d.uid, id))
			plugin.Close(p)
		}
	}
	for id, p := range added {
		if plugins[id] != p && d.plugins[id] != p {
			plugin.Close(p)
		}
	}
	d.song, d.plugins, d.contexts, d.layers = s, plugins, contexts, layers
	d.inputs = make([]mixer.Input, 0, len(contexts))
	return nil
}

func (d *Driver) resolve(s *song.Song, added map[string]plugin.Plugin) (map[string]plugin.Plugin, [][]int, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	layers, err := Layers(s)
	if err != nil {
		return nil, nil, err
	}
	plugins := make(map[string]plugin.Plugin)
	for t, tr := range s.Tracks {
		for m, mod := range tr.Modules {
			if _, ok := plugins[mod.ID]; ok {
				return nil, nil, &sequencer.BindingError{Track: t, Module: m, Reason: fmt.Sprintf("duplicate module id %v", mod.ID)}
			}
			p, ok := added[mod.ID]
			if !ok {
				p, ok = d.plugins[mod.ID]
			}
			if !ok || p == nil {
				return nil, nil, &sequencer.BindingError{Track: t, Module: m, Reason: fmt.Sprintf("module %v has no loaded plugin", mod.ID)}
			}
			plugins[mod.ID] = p
		}
	}
	if err := checkPorts(s, plugins); err != nil {
		return nil, nil, err
	}
	return plugins, layers, nil
}

// checkPorts validates port indices of audio inputs against the plugins.
func checkPorts(s *song.Song, plugins map[string]plugin.Plugin) error {
	for t, tr := range s.Tracks {
		for m, mod := range tr.Modules {
			inputs, _ := render.Ports(plugins[mod.ID])
			for _, in := range mod.AudioInputs {
				if in.DstPort >= inputs {
					return &sequencer.BindingError{Track: t, Module: m, Reason: fmt.Sprintf("destination port %d doesn't exist", in.DstPort)}
				}
				src := s.Tracks[in.SrcTrack].Modules[in.SrcModule]
				if _, outputs := render.Ports(plugins[src.ID]); in.SrcPort >= outputs {
					return &sequencer.BindingError{Track: t, Module: m, Reason: fmt.Sprintf("source track %d module %d port %d doesn't exist", in.SrcTrack, in.SrcModule, in.SrcPort)}
				}
			}
		}
	}
	return nil
}

// moduleOf reuses module state of the plugin if context already has it.
func moduleOf(c *render.Context, p plugin.Plugin) *render.Module {
	for _, m := range c.Modules {
		if m.Plugin == p {
			return m
		}
	}
	return render.NewModule(p, c.NumChannels, c.Frames)
}

// Close destroys all plugins. Driver cannot be used after close.
func (d *Driver) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	closeAll(d.plugins)
	d.plugins = nil
	d.contexts = nil
	d.layers = nil
	d.Debug(fmt.Sprintf("driver %v closed", d.uid))
	return nil
}

func closeAll(plugins map[string]plugin.Plugin) {
	for _, p := range plugins {
		plugin.Close(p)
	}
}
