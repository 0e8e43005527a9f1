package render

import (
	"fmt"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/song"
)

// EventKind is a type of translated event.
type EventKind int

const (
	// NoteOn starts the note.
	NoteOn EventKind = iota
	// NoteOff releases the note.
	NoteOff
	// NoteAllOff releases Keys held at the moment it was queued.
	NoteAllOff
	// ParamValue sets parameter of Module.
	ParamValue
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case NoteAllOff:
		return "NoteAllOff"
	case ParamValue:
		return "ParamValue"
	}
	return "Unknown"
}

// Event is a block event. Time is the offset in ticks from the block
// start.
type Event struct {
	Kind     EventKind
	Time     int
	Key      uint8
	Velocity uint8
	Keys     []uint8
	Module   int
	Param    uint32
	Value    float64
}

// Ranges returns tick ranges covered by the window. Window that crosses
// the loop end is split into [start, loop end) and [loop start, end).
// Empty window covers nothing.
func Ranges(window, loop song.Range) []song.Range {
	switch {
	case window.Start < window.End:
		return []song.Range{window}
	case window.Start == window.End || !loop.Enabled():
		return nil
	}
	return []song.Range{
		{Start: window.Start, End: loop.End},
		{Start: loop.Start, End: window.End},
	}
}

// Translate appends events of items inside the window to the queue. Lines
// are iterated first, lanes second. Offsets of the second range continue
// after the first one.
func Translate(tr *song.Track, window, loop song.Range, held HeldKeys, events []Event) ([]Event, error) {
	base := 0
	for _, r := range Ranges(window, loop) {
		lineEnd := r.End / song.TicksPerLine
		for line := r.Start / song.TicksPerLine; line <= lineEnd; line++ {
			for lane := range tr.Lanes {
				item, ok := tr.Lanes[lane].Items[line]
				if !ok {
					continue
				}
				time := item.Time(line)
				if !r.Contains(time) {
					continue
				}
				offset := base + time - r.Start
				switch {
				case item.Note != nil:
					if key, ok := held[lane]; ok {
						events = append(events, Event{Kind: NoteOff, Time: offset, Key: key})
						delete(held, lane)
					}
					if !item.Note.Off {
						events = append(events, Event{
							Kind:     NoteOn,
							Time:     offset,
							Key:      item.Note.Key,
							Velocity: item.Note.Velocity,
						})
						held[lane] = item.Note.Key
					}
				case item.Point != nil:
					idx := item.Point.Automation
					if idx < 0 || idx >= len(tr.AutomationParams) {
						return events, &sequencer.BindingError{
							Track:  -1,
							Module: -1,
							Reason: fmt.Sprintf("lane %d line %d uses automation %d which doesn't exist", lane, line, idx),
						}
					}
					target := tr.AutomationParams[idx]
					events = append(events, Event{
						Kind:   ParamValue,
						Time:   offset,
						Module: target.Module,
						Param:  target.Param,
						Value:  float64(item.Point.Value) / 255,
					})
				}
			}
		}
		base += r.Len()
	}
	return events, nil
}
