package render

import (
	"cmp"
	"slices"

	"github.com/dudk/sequencer/plugin"
)

// PrepareEvents converts block queue into events of the module. Notes go
// to every module on channel 0, parameter values only to their target.
// Events are ordered by frame, events on the same frame keep the queue
// order. Destination slice is reused.
func PrepareEvents(queue []Event, module int, samplesPerTick float64, frames int, dst []plugin.Event) []plugin.Event {
	dst = dst[:0]
	for _, e := range queue {
		switch e.Kind {
		case NoteOn:
			dst = append(dst, plugin.Event{
				Kind:     plugin.NoteOn,
				Frame:    FrameOf(e.Time, samplesPerTick, frames),
				Key:      e.Key,
				Velocity: e.Velocity,
			})
		case NoteOff:
			dst = append(dst, plugin.Event{
				Kind:  plugin.NoteOff,
				Frame: FrameOf(e.Time, samplesPerTick, frames),
				Key:   e.Key,
			})
		case NoteAllOff:
			for _, key := range e.Keys {
				dst = append(dst, plugin.Event{Kind: plugin.NoteOff, Key: key})
			}
		case ParamValue:
			if e.Module != module {
				continue
			}
			dst = append(dst, plugin.Event{
				Kind:  plugin.ParamValue,
				Frame: FrameOf(e.Time, samplesPerTick, frames),
				Param: e.Param,
				Value: e.Value,
			})
		}
	}
	slices.SortStableFunc(dst, byFrame)
	return dst
}

func byFrame(a, b plugin.Event) int {
	return cmp.Compare(a.Frame, b.Frame)
}
