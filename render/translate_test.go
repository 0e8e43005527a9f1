package render_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/render"
	"github.com/dudk/sequencer/song"
)

func newTrack(lanes int) *song.Track {
	tr := song.NewTrack("T00")
	tr.Lanes = make([]song.Lane, lanes)
	return &tr
}

func set(tr *song.Track, lane, line int, item song.Item) {
	if tr.Lanes[lane].Items == nil {
		tr.Lanes[lane].Items = make(map[int]song.Item)
	}
	tr.Lanes[lane].Items[line] = item
}

func TestRanges(t *testing.T) {
	loop := song.Range{Start: 0, End: 0x0e00}
	tests := []struct {
		description string
		window      song.Range
		loop        song.Range
		expected    []song.Range
	}{
		{
			description: "regular window",
			window:      song.Range{Start: 0, End: 256},
			loop:        loop,
			expected:    []song.Range{{Start: 0, End: 256}},
		},
		{
			description: "stopped",
			window:      song.Range{Start: 512, End: 512},
			loop:        loop,
		},
		{
			description: "wrapped window",
			window:      song.Range{Start: 0x0d80, End: 0x0180},
			loop:        loop,
			expected:    []song.Range{{Start: 0x0d80, End: 0x0e00}, {Start: 0, End: 0x0180}},
		},
		{
			description: "wrapped window without loop",
			window:      song.Range{Start: 0x0d80, End: 0x0180},
		},
	}
	for _, c := range tests {
		assert.Equal(t, c.expected, render.Ranges(c.window, c.loop), c.description)
	}
}

func TestTranslateNoteAtLineStart(t *testing.T) {
	tr := newTrack(1)
	set(tr, 0, 0, song.NoteItem(60, 100))
	held := render.HeldKeys{}

	events, err := render.Translate(tr, song.Range{Start: 0, End: 256}, song.Range{}, held, nil)
	require.NoError(t, err)
	assert.Equal(t, []render.Event{
		{Kind: render.NoteOn, Time: 0, Key: 60, Velocity: 100},
	}, events)
	assert.Equal(t, render.HeldKeys{0: 60}, held)
}

func TestTranslateWrappedWindow(t *testing.T) {
	tr := newTrack(1)
	late := song.NoteItem(50, 100)
	late.Delay = 0x80
	set(tr, 0, 0x0d, late)
	set(tr, 0, 0x00, song.NoteItem(60, 100))
	set(tr, 0, 0x01, song.NoteItem(62, 100))
	set(tr, 0, 0x02, song.NoteItem(64, 100))
	held := render.HeldKeys{}

	events, err := render.Translate(tr, song.Range{Start: 0x0d80, End: 0x0180}, song.Range{Start: 0, End: 0x0e00}, held, nil)
	require.NoError(t, err)
	assert.Equal(t, []render.Event{
		{Kind: render.NoteOn, Time: 0, Key: 50, Velocity: 100},
		{Kind: render.NoteOff, Time: 0x80, Key: 50},
		{Kind: render.NoteOn, Time: 0x80, Key: 60, Velocity: 100},
		{Kind: render.NoteOff, Time: 0x180, Key: 60},
		{Kind: render.NoteOn, Time: 0x180, Key: 62, Velocity: 100},
	}, events)
	assert.Equal(t, render.HeldKeys{0: 62}, held)
}

func TestTranslateHeldKeys(t *testing.T) {
	tr := newTrack(2)
	set(tr, 0, 0, song.NoteItem(60, 100))
	set(tr, 1, 0, song.NoteItem(48, 90))
	set(tr, 0, 1, song.NoteItem(61, 100))
	set(tr, 0, 2, song.OffItem())
	set(tr, 0, 3, song.OffItem())
	held := render.HeldKeys{}

	events, err := render.Translate(tr, song.Range{Start: 0, End: 4 * song.TicksPerLine}, song.Range{}, held, nil)
	require.NoError(t, err)
	assert.Equal(t, []render.Event{
		{Kind: render.NoteOn, Time: 0, Key: 60, Velocity: 100},
		{Kind: render.NoteOn, Time: 0, Key: 48, Velocity: 90},
		{Kind: render.NoteOff, Time: 256, Key: 60},
		{Kind: render.NoteOn, Time: 256, Key: 61, Velocity: 100},
		{Kind: render.NoteOff, Time: 512, Key: 61},
	}, events)
	assert.Equal(t, render.HeldKeys{1: 48}, held)
}

func TestTranslateAcrossBlocks(t *testing.T) {
	tr := newTrack(1)
	set(tr, 0, 0, song.NoteItem(60, 100))
	set(tr, 0, 1, song.OffItem())
	held := render.HeldKeys{}

	events, err := render.Translate(tr, song.Range{Start: 0, End: 200}, song.Range{}, held, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// boundary tick 256 belongs to the next block only
	events, err = render.Translate(tr, song.Range{Start: 200, End: 256}, song.Range{}, held, nil)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = render.Translate(tr, song.Range{Start: 256, End: 300}, song.Range{}, held, nil)
	require.NoError(t, err)
	assert.Equal(t, []render.Event{{Kind: render.NoteOff, Time: 0, Key: 60}}, events)
	assert.Empty(t, held)
}

func TestTranslatePoint(t *testing.T) {
	tr := newTrack(2)
	tr.AutomationParams = []song.AutomationParam{{Module: 0, Param: 3}, {Module: 1, Param: 7}}
	set(tr, 1, 0, song.PointItem(255, 1))
	set(tr, 1, 1, song.PointItem(0, 0))

	events, err := render.Translate(tr, song.Range{Start: 0, End: 512}, song.Range{}, render.HeldKeys{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []render.Event{
		{Kind: render.ParamValue, Time: 0, Module: 1, Param: 7, Value: 1},
		{Kind: render.ParamValue, Time: 256, Module: 0, Param: 3, Value: 0},
	}, events)

	set(tr, 1, 2, song.PointItem(10, 5))
	_, err = render.Translate(tr, song.Range{Start: 512, End: 768}, song.Range{}, render.HeldKeys{}, nil)
	assert.True(t, errors.Is(err, sequencer.ErrInvalidBinding))
}

// blocks advances window the same way the driver does.
func blocks(loop song.Range, ticks, n int) []song.Range {
	windows := make([]song.Range, 0, n)
	w := song.Range{}
	for i := 0; i < n; i++ {
		w.Start = w.End
		w.End = w.Start + ticks
		if w.End > loop.End {
			w.End = loop.Start + (w.End - loop.End)
		}
		windows = append(windows, w)
	}
	return windows
}

func TestTranslateLoopPartition(t *testing.T) {
	loop := song.Range{Start: 0, End: 0x0e00}
	tr := newTrack(1)
	for line := 0; line < 0x0e; line++ {
		item := song.NoteItem(uint8(line), 100)
		item.Delay = uint8(line * 17)
		set(tr, 0, line, item)
	}
	// 0x180 doesn't divide the loop, so block edges move every pass
	const passes = 3
	n := passes * 0x0e00 / 0x0180
	held := render.HeldKeys{}
	counts := make(map[uint8]int)
	for _, w := range blocks(loop, 0x0180, n) {
		events, err := render.Translate(tr, w, loop, held, nil)
		require.NoError(t, err)
		for _, e := range events {
			if e.Kind == render.NoteOn {
				counts[e.Key]++
			}
		}
	}
	for line := 0; line < 0x0e; line++ {
		assert.Equal(t, passes, counts[uint8(line)], "line %d", line)
	}
}

func TestTranslateIdempotent(t *testing.T) {
	loop := song.Range{Start: 0, End: 0x0800}
	tr := newTrack(2)
	tr.AutomationParams = []song.AutomationParam{{Module: 0, Param: 1}}
	set(tr, 0, 0, song.NoteItem(60, 100))
	set(tr, 0, 3, song.OffItem())
	set(tr, 0, 5, song.NoteItem(64, 80))
	set(tr, 1, 2, song.PointItem(100, 0))

	run := func() []render.Event {
		held := render.HeldKeys{}
		var all []render.Event
		for _, w := range blocks(loop, 0x0130, 20) {
			events, err := render.Translate(tr, w, loop, held, nil)
			require.NoError(t, err)
			all = append(all, events...)
		}
		return all
	}
	first := run()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, run())
}
