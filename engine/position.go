package engine

import (
	"math"

	"github.com/dudk/sequencer/song"
)

// Advance returns the play window of the next block. New window starts
// where the previous ended. When the end passes enabled loop, it wraps to
// the loop start, so the window has start > end. A window starting at or
// after the end of enabled loop restarts at the loop start. Stopped
// transport yields an empty window.
func Advance(window, loop song.Range, playing bool, frames, sampleRate int, bpm float64, lpb int) song.Range {
	w := song.Range{Start: window.End, End: window.End}
	if !playing || sampleRate <= 0 || bpm <= 0 || lpb <= 0 {
		return w
	}
	if loop.Enabled() && w.Start >= loop.End {
		w = song.Range{Start: loop.Start, End: loop.Start}
	}
	w.End += Ticks(frames, sampleRate, bpm, lpb)
	if loop.Enabled() && w.End > loop.End {
		w.End = loop.Start + (w.End-loop.End)%loop.Len()
	}
	return w
}

// Ticks returns number of ticks covered by the frames.
func Ticks(frames, sampleRate int, bpm float64, lpb int) int {
	seconds := float64(frames) / float64(sampleRate)
	tick := 60 / (bpm * float64(lpb) * song.TicksPerLine)
	return int(math.Round(seconds / tick))
}

// Blocks returns number of blocks needed to cover ticks.
func Blocks(ticks, frames, sampleRate int, bpm float64, lpb int) int {
	perBlock := Ticks(frames, sampleRate, bpm, lpb)
	if perBlock <= 0 {
		return 0
	}
	return (ticks + perBlock - 1) / perBlock
}

// Line returns line of the tick.
func Line(tick int) int {
	return tick / song.TicksPerLine
}
