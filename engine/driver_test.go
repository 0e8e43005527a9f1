package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/engine"
	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/plugin/mock"
	"github.com/dudk/sequencer/song"
)

const (
	numChannels = 2
	// quarter of second at 48000 is two lines at 120 bpm with 4 lpb
	frames = 12000
)

var errMock = errors.New("mock error")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSong() *song.Song {
	s := song.New()
	s.BPM = 120
	return s
}

// addModule appends module with the plugin to the track.
func addModule(s *song.Song, plugins map[string]plugin.Plugin, track int, p plugin.Plugin, inputs ...song.AudioInput) {
	m := song.NewModule("mock", "mock", inputs...)
	s.Tracks[track].Modules = append(s.Tracks[track].Modules, m)
	plugins[m.ID] = p
}

func newDriver(t *testing.T, s *song.Song, plugins map[string]plugin.Plugin, options ...engine.Option) *engine.Driver {
	t.Helper()
	options = append([]engine.Option{engine.WithLogger(log.Discard())}, options...)
	d, err := engine.New(s, plugins, options...)
	require.NoError(t, err)
	return d
}

func process(t *testing.T, d *engine.Driver) []float32 {
	t.Helper()
	out := make([]float32, numChannels*frames)
	require.NoError(t, d.Process(out, numChannels))
	return out
}

func notifications(d *engine.Driver) []engine.Notification {
	var result []engine.Notification
	for {
		select {
		case n := <-d.Notifications():
			result = append(result, n)
		default:
			return result
		}
	}
}

func assertAll(t *testing.T, expected float32, out []float32, msgAndArgs ...interface{}) {
	t.Helper()
	for i, v := range out {
		if !assert.InDelta(t, expected, v, 1e-6, msgAndArgs...) {
			t.Logf("sample %d", i)
			return
		}
	}
}

func TestDriverCrossTrackRouting(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	source := &mock.Plugin{Value: 0.5}
	sink := &mock.Plugin{Passthrough: true, Record: true}
	s.AddTrack()
	s.AddTrack()
	addModule(s, plugins, 0, source)
	addModule(s, plugins, 1, sink, song.AudioInput{SrcTrack: 0})

	d := newDriver(t, s, plugins)
	out := process(t, d)

	require.Len(t, sink.RecordedInputs(), 1)
	in := sink.RecordedInputs()[0]
	for ch := range in.Buffer {
		assert.False(t, in.ConstantMask.Has(ch))
		assertAll(t, 0.5, in.Buffer[ch], "routed channel %d", ch)
	}
	// both tracks are summed at center pan
	assertAll(t, 1, out, "mix")
	assert.NoError(t, d.Close())
	assert.True(t, source.Destroyed)
	assert.True(t, sink.Destroyed)
}

func TestDriverParallelTracks(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	for i := 0; i < 4; i++ {
		s.AddTrack()
		addModule(s, plugins, i, &mock.Plugin{Value: 0.125, Constant: i%2 == 0})
	}
	d := newDriver(t, s, plugins, engine.WithWorkers(2))
	assertAll(t, 0.5, process(t, d))
	assert.NoError(t, d.Close())
}

func TestDriverPluginFailure(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	s.AddTrack()
	s.AddTrack()
	addModule(s, plugins, 0, &mock.Plugin{Value: 0.5})
	addModule(s, plugins, 1, &mock.Plugin{ErrorOnCall: errMock})
	d := newDriver(t, s, plugins)
	require.True(t, d.Send(engine.Play{}))

	out := make([]float32, numChannels*frames)
	for i := range out {
		out[i] = 1
	}
	err := d.Process(out, numChannels)
	assert.ErrorIs(t, err, sequencer.ErrPluginProcess)
	assert.ErrorIs(t, err, errMock)
	var pe *sequencer.PluginError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Track)
	assert.Equal(t, 0, pe.Module)
	assertAll(t, 0, out)
	assert.False(t, d.Song().Playing)

	var failed bool
	for _, n := range notifications(d) {
		if rf, ok := n.(engine.RenderFailed); ok {
			failed = true
			assert.ErrorIs(t, rf.Err, errMock)
		}
	}
	assert.True(t, failed)
	assert.NoError(t, d.Close())
}

func TestDriverNotes(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	synth := &mock.Plugin{Record: true}
	s.AddTrack()
	addModule(s, plugins, 0, synth)
	item := song.NoteItem(60, 100)
	require.NoError(t, s.SetItem(0, 0, 0, &item))
	d := newDriver(t, s, plugins)

	require.True(t, d.Send(engine.Play{}))
	process(t, d)
	require.True(t, d.Send(engine.Stop{}))
	process(t, d)
	require.True(t, d.Send(engine.NoteOn{Track: 0, Key: 64, Velocity: 90}))
	require.True(t, d.Send(engine.NoteOff{Track: 0, Key: 64}))
	process(t, d)

	expected := [][]plugin.Event{
		{{Kind: plugin.NoteOn, Key: 60, Velocity: 100}},
		{{Kind: plugin.NoteOff, Key: 60}},
		{{Kind: plugin.NoteOn, Key: 64, Velocity: 90}, {Kind: plugin.NoteOff, Key: 64}},
	}
	assert.Equal(t, expected, synth.Events())
	assert.Equal(t, int64(3*frames), d.SteadyTime())
	assert.NoError(t, d.Close())
}

func TestDriverLineChanged(t *testing.T) {
	s := newSong()
	s.AddTrack()
	d := newDriver(t, s, nil)
	require.True(t, d.Send(engine.Play{}))
	process(t, d)
	process(t, d)
	require.True(t, d.Send(engine.Seek{Line: 8}))
	process(t, d)

	var lines []int
	for _, n := range notifications(d) {
		if lc, ok := n.(engine.LineChanged); ok {
			lines = append(lines, lc.Line)
		}
	}
	assert.Equal(t, []int{0, 2, 8}, lines)
	assert.NoError(t, d.Close())
}

func TestDriverFailDropsLiveNotes(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	source := &mock.Plugin{ErrorOnCall: errMock}
	synth := &mock.Plugin{Record: true}
	s.AddTrack()
	s.AddTrack()
	addModule(s, plugins, 0, source)
	addModule(s, plugins, 1, synth, song.AudioInput{SrcTrack: 0, SrcModule: 0})
	d := newDriver(t, s, plugins)

	require.True(t, d.Send(engine.Play{}))
	require.True(t, d.Send(engine.NoteOn{Track: 1, Key: 64, Velocity: 90}))
	out := make([]float32, numChannels*frames)
	require.ErrorIs(t, d.Process(out, numChannels), errMock)
	assert.Empty(t, synth.Events())

	source.ErrorOnCall = nil
	process(t, d)
	require.Len(t, synth.Events(), 1)
	assert.Empty(t, synth.Events()[0])
	assert.False(t, d.Song().Playing)
	assert.NoError(t, d.Close())
}

func TestDriverSeekPastLoop(t *testing.T) {
	s := newSong()
	s.Loop = song.Range{Start: 0, End: 0x0e00}
	plugins := map[string]plugin.Plugin{}
	synth := &mock.Plugin{Record: true}
	s.AddTrack()
	addModule(s, plugins, 0, synth)
	for line := 0; line < 14; line++ {
		item := song.NoteItem(uint8(60+line), 100)
		require.NoError(t, s.SetItem(0, 0, line, &item))
	}
	d := newDriver(t, s, plugins)

	require.True(t, d.Send(engine.Seek{Line: 32}))
	require.True(t, d.Send(engine.Play{}))
	process(t, d)

	var keys []uint8
	last := -1
	for _, e := range synth.Events()[0] {
		assert.GreaterOrEqual(t, e.Frame, last)
		last = e.Frame
		if e.Kind == plugin.NoteOn {
			keys = append(keys, e.Key)
		}
	}
	assert.Equal(t, []uint8{60, 61}, keys)
	assert.Equal(t, song.Range{Start: 0, End: 0x200}, d.Song().PlayPosition)
	assert.NoError(t, d.Close())
}

func TestDriverCommands(t *testing.T) {
	tests := []struct {
		description string
		commands    []engine.Command
		failed      int
		check       func(*testing.T, *song.Song, []float32)
	}{
		{
			description: "add track",
			commands:    []engine.Command{engine.AddTrack{}},
			check: func(t *testing.T, s *song.Song, _ []float32) {
				assert.Len(t, s.Tracks, 2)
				assert.Equal(t, "T01", s.Tracks[1].Name)
			},
		},
		{
			description: "add module",
			commands: []engine.Command{
				engine.AddTrack{},
				engine.AddModule{Track: 1, Module: song.Module{Name: "gain"}, Plugin: &mock.Plugin{Value: 0.25}},
			},
			check: func(t *testing.T, s *song.Song, out []float32) {
				require.Len(t, s.Tracks[1].Modules, 1)
				assert.NotEmpty(t, s.Tracks[1].Modules[0].ID)
				assertAll(t, 0.5, out)
			},
		},
		{
			description: "mute",
			commands:    []engine.Command{engine.SetMixer{Track: 0, Volume: 1, Pan: 0.5, Mute: true}},
			check: func(t *testing.T, s *song.Song, out []float32) {
				assert.True(t, s.Tracks[0].Mute)
				assertAll(t, 0, out)
			},
		},
		{
			description: "volume",
			commands:    []engine.Command{engine.SetMixer{Track: 0, Volume: 0.5, Pan: 0.5}},
			check: func(t *testing.T, _ *song.Song, out []float32) {
				assertAll(t, 0.125, out)
			},
		},
		{
			description: "invalid mixer",
			commands:    []engine.Command{engine.SetMixer{Track: 0, Volume: 1, Pan: 2}},
			failed:      1,
		},
		{
			description: "set item",
			commands: []engine.Command{
				engine.SetItem{Track: 0, Lane: 2, Line: 4, Item: &song.Item{Note: &song.Note{Key: 40, Velocity: 1}}},
			},
			check: func(t *testing.T, s *song.Song, _ []float32) {
				require.Len(t, s.Tracks[0].Lanes, 3)
				assert.Equal(t, uint8(40), s.Tracks[0].Lanes[2].Items[4].Note.Key)
			},
		},
		{
			description: "invalid point is reverted",
			commands: []engine.Command{
				engine.SetItem{Track: 0, Lane: 0, Line: 0, Item: &song.Item{Note: &song.Note{Key: 40}}},
				engine.SetItem{Track: 0, Lane: 0, Line: 0, Item: &song.Item{Point: &song.Point{Automation: 3}}},
			},
			failed: 1,
			check: func(t *testing.T, s *song.Song, _ []float32) {
				item := s.Tracks[0].Lanes[0].Items[0]
				require.NotNil(t, item.Note)
				assert.Nil(t, item.Point)
			},
		},
		{
			description: "loop",
			commands:    []engine.Command{engine.SetLoop{Loop: song.Range{Start: 0, End: 0x400}}},
			check: func(t *testing.T, s *song.Song, _ []float32) {
				assert.Equal(t, song.Range{Start: 0, End: 0x400}, s.Loop)
			},
		},
		{
			description: "track out of range",
			commands:    []engine.Command{engine.NoteOn{Track: 5, Key: 1}},
			failed:      1,
		},
		{
			description: "set song without plugin",
			commands: []engine.Command{
				engine.SetSong{Song: reads(nil)},
			},
			failed: 1,
			check: func(t *testing.T, s *song.Song, _ []float32) {
				assert.Len(t, s.Tracks, 1)
				assert.Len(t, s.Tracks[0].Modules, 1)
			},
		},
	}
	for _, c := range tests {
		s := newSong()
		plugins := map[string]plugin.Plugin{}
		s.AddTrack()
		addModule(s, plugins, 0, &mock.Plugin{Value: 0.25})
		d := newDriver(t, s, plugins)
		for _, cmd := range c.commands {
			require.True(t, d.Send(cmd), c.description)
		}
		out := process(t, d)

		var failed int
		for _, n := range notifications(d) {
			if _, ok := n.(engine.CommandFailed); ok {
				failed++
			}
		}
		assert.Equal(t, c.failed, failed, c.description)
		if c.check != nil {
			c.check(t, d.Song(), out)
		}
		assert.NoError(t, d.Close(), c.description)
	}
}

func TestDriverSetSong(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	s.AddTrack()
	old := &mock.Plugin{Value: 0.25}
	kept := &mock.Plugin{Value: 0.25}
	addModule(s, plugins, 0, old)
	addModule(s, plugins, 0, kept)
	d := newDriver(t, s, plugins)

	next := d.Song()
	next.Tracks[0].Modules = next.Tracks[0].Modules[1:]
	next.AddTrack()
	added := &mock.Plugin{Value: 0.5}
	m := song.NewModule("added", "mock")
	next.Tracks[1].Modules = []song.Module{m}
	require.True(t, d.Send(engine.SetSong{Song: next, Plugins: map[string]plugin.Plugin{m.ID: added}}))
	out := process(t, d)

	assertAll(t, 0.75, out)
	assert.True(t, old.Destroyed)
	assert.False(t, kept.Destroyed)
	assert.False(t, added.Destroyed)

	var changed *song.Song
	for _, n := range notifications(d) {
		if sc, ok := n.(engine.SongChanged); ok {
			changed = sc.Song
		}
	}
	require.NotNil(t, changed)
	assert.Len(t, changed.Tracks, 2)
	assert.NoError(t, d.Close())
	assert.True(t, kept.Destroyed)
	assert.True(t, added.Destroyed)
}

func TestDriverQueue(t *testing.T) {
	d := newDriver(t, newSong(), nil, engine.WithQueue(1))
	assert.True(t, d.Send(engine.Play{}))
	assert.False(t, d.Send(engine.Stop{}))
	process(t, d)
	assert.True(t, d.Song().Playing)
	assert.NoError(t, d.Close())
}

func TestNew(t *testing.T) {
	tests := []struct {
		description string
		song        func(map[string]plugin.Plugin) *song.Song
		options     []engine.Option
		err         error
	}{
		{
			description: "missing plugin",
			song: func(map[string]plugin.Plugin) *song.Song {
				return reads(nil)
			},
			err: sequencer.ErrInvalidBinding,
		},
		{
			description: "cycle",
			song: func(plugins map[string]plugin.Plugin) *song.Song {
				s := reads([]int{1}, []int{0})
				for _, tr := range s.Tracks {
					plugins[tr.Modules[0].ID] = &mock.Plugin{}
				}
				return s
			},
			err: sequencer.ErrInvalidBinding,
		},
		{
			description: "missing destination port",
			song: func(plugins map[string]plugin.Plugin) *song.Song {
				s := newSong()
				s.AddTrack()
				addModule(s, plugins, 0, &mock.Plugin{Inputs: 1, Outputs: 1})
				addModule(s, plugins, 0, &mock.Plugin{Inputs: 1, Outputs: 1}, song.AudioInput{SrcTrack: 0, SrcModule: 0, DstPort: 3})
				return s
			},
			err: sequencer.ErrInvalidBinding,
		},
		{
			description: "missing source port",
			song: func(plugins map[string]plugin.Plugin) *song.Song {
				s := newSong()
				s.AddTrack()
				s.AddTrack()
				addModule(s, plugins, 0, &mock.Plugin{Inputs: 1, Outputs: 2})
				addModule(s, plugins, 1, &mock.Plugin{Inputs: 1, Outputs: 1}, song.AudioInput{SrcTrack: 0, SrcModule: 0, SrcPort: 2})
				return s
			},
			err: sequencer.ErrInvalidBinding,
		},
		{
			description: "invalid workers",
			song: func(plugins map[string]plugin.Plugin) *song.Song {
				s := newSong()
				s.AddTrack()
				addModule(s, plugins, 0, &mock.Plugin{})
				return s
			},
			options: []engine.Option{engine.WithWorkers(0)},
		},
	}
	for _, c := range tests {
		plugins := map[string]plugin.Plugin{}
		s := c.song(plugins)
		d, err := engine.New(s, plugins, append(c.options, engine.WithLogger(log.Discard()))...)
		assert.Nil(t, d, c.description)
		assert.Error(t, err, c.description)
		if c.err != nil {
			assert.ErrorIs(t, err, c.err, c.description)
		}
		for _, p := range plugins {
			assert.True(t, p.(*mock.Plugin).Destroyed, c.description)
		}
	}
}

func TestDriverClosed(t *testing.T) {
	d := newDriver(t, newSong(), nil)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), engine.ErrClosed)
	assert.ErrorIs(t, d.Process(make([]float32, 4), numChannels), engine.ErrClosed)
}

type sink struct {
	blocks int
	last   []float32
	err    error
}

func (s *sink) Write(b []float32) error {
	s.blocks++
	s.last = append(s.last[:0], b...)
	return s.err
}

func TestBounce(t *testing.T) {
	s := newSong()
	plugins := map[string]plugin.Plugin{}
	s.AddTrack()
	p := &mock.Plugin{Value: 0.25}
	addModule(s, plugins, 0, p)
	d := newDriver(t, s, plugins)

	w := &sink{}
	require.NoError(t, d.Bounce(context.Background(), w, numChannels, 512, 10))
	assert.Equal(t, 10, w.blocks)
	assertAll(t, 0.25, w.last)
	messages, samples := p.Count()
	assert.Equal(t, 10, messages)
	assert.Equal(t, 5120, samples)

	w = &sink{err: errMock}
	assert.ErrorIs(t, d.Bounce(context.Background(), w, numChannels, 512, 10), errMock)
	assert.Equal(t, 1, w.blocks)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Bounce(ctx, &sink{}, numChannels, 512, 10), context.Canceled)
	assert.NoError(t, d.Close())
}
