// Package song contains the timeline model: what to play and how module
// signals are patched. The model is owned by the editor. The engine reads
// a copy of it every block and never mutates it mid-block.
package song

import (
	"fmt"

	"github.com/dudk/sequencer"
)

const (
	// TicksPerLine is the number of ticks in one line.
	TicksPerLine = 256

	// DefaultBPM is the tempo of a new song.
	DefaultBPM = 128
	// DefaultSampleRate is the sample rate of a new song.
	DefaultSampleRate = 48000
	// DefaultLPB is the number of lines per beat of a new song.
	DefaultLPB = 4
)

type (
	// Song is the root of the timeline model.
	Song struct {
		Name       string `yaml:",omitempty"`
		BPM        float64
		SampleRate int
		LPB        int
		// Playing is the transport flag.
		Playing bool `yaml:",omitempty"`
		// PlayPosition is the current play window in ticks.
		PlayPosition Range
		// Loop is enabled when its End is greater than Start.
		Loop   Range `yaml:",flow"`
		Tracks []Track
	}

	// Range is a half-open interval of ticks.
	Range struct {
		Start int
		End   int
	}

	// Track is an ordered chain of modules driven by its lanes.
	Track struct {
		ID     string
		Name   string
		Volume float32
		Pan    float32
		Mute   bool `yaml:",omitempty"`
		Solo   bool `yaml:",omitempty"`
		// Modules are listed in processing order.
		Modules []Module
		Lanes   []Lane
		// AutomationParams maps automation index to module parameter.
		AutomationParams []AutomationParam `yaml:",omitempty"`
	}

	// AutomationParam is a target of automation points.
	AutomationParam struct {
		Module int
		Param  uint32
	}

	// Lane is a sparse mapping from line to item.
	Lane struct {
		Items map[int]Item `yaml:",omitempty"`
	}

	// Item is a note or automation point stored at a line. Exactly one of
	// Note and Point is set.
	Item struct {
		// Delay is the sub-line offset in ticks.
		Delay uint8  `yaml:",omitempty"`
		Note  *Note  `yaml:",omitempty,flow"`
		Point *Point `yaml:",omitempty,flow"`
	}

	// Note starts a note on the lane. Off note only releases the held one.
	Note struct {
		Key      uint8
		Velocity uint8 `yaml:",omitempty"`
		Off      bool  `yaml:",omitempty"`
	}

	// Point is a normalized automation sample.
	Point struct {
		Value      uint8
		Automation int
	}

	// Module identifies a plugin instance and its audio patch cables.
	Module struct {
		ID          string
		Name        string       `yaml:",omitempty"`
		Path        string       `yaml:",omitempty"`
		AudioInputs []AudioInput `yaml:",omitempty"`
	}

	// AudioInput patches a source port into destination port of the
	// module it belongs to.
	AudioInput struct {
		SrcTrack  int
		SrcModule int
		SrcPort   int
		DstPort   int
	}
)

// New returns a song with default settings and no tracks.
func New() *Song {
	return &Song{
		BPM:        DefaultBPM,
		SampleRate: DefaultSampleRate,
		LPB:        DefaultLPB,
	}
}

// Contains checks if tick belongs to the range.
func (r Range) Contains(tick int) bool {
	return r.Start <= tick && tick < r.End
}

// Len returns length of the range in ticks.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Enabled reports whether the range is usable as loop.
func (r Range) Enabled() bool {
	return r.End > r.Start
}

// Time returns absolute tick time of item placed at line.
func (i Item) Time(line int) int {
	return line*TicksPerLine + int(i.Delay)
}

// NoteItem returns an item that starts a note.
func NoteItem(key, velocity uint8) Item {
	return Item{Note: &Note{Key: key, Velocity: velocity}}
}

// OffItem returns an item that releases the held note.
func OffItem() Item {
	return Item{Note: &Note{Off: true}}
}

// PointItem returns an automation item.
func PointItem(value uint8, automation int) Item {
	return Item{Point: &Point{Value: value, Automation: automation}}
}

// NewTrack returns a track with default mixer state and a single lane.
func NewTrack(name string) Track {
	return Track{
		ID:     sequencer.NewUID(),
		Name:   name,
		Volume: 1,
		Pan:    0.5,
		Lanes:  []Lane{{}},
	}
}

// AddTrack appends new track with a generated name and returns its index.
func (s *Song) AddTrack() int {
	s.Tracks = append(s.Tracks, NewTrack(fmt.Sprintf("T%02X", len(s.Tracks))))
	return len(s.Tracks) - 1
}

// NewModule returns a module with new unique id.
func NewModule(name, path string, inputs ...AudioInput) Module {
	return Module{
		ID:          sequencer.NewUID(),
		Name:        name,
		Path:        path,
		AudioInputs: inputs,
	}
}

// SetItem places item at the line of the lane. Lanes are added if needed.
// Nil item deletes the line.
func (s *Song) SetItem(track, lane, line int, item *Item) error {
	if track < 0 || track >= len(s.Tracks) {
		return fmt.Errorf("track %d out of range", track)
	}
	if lane < 0 || line < 0 {
		return fmt.Errorf("invalid position lane %d line %d", lane, line)
	}
	t := &s.Tracks[track]
	for len(t.Lanes) <= lane {
		t.Lanes = append(t.Lanes, Lane{})
	}
	l := &t.Lanes[lane]
	if item == nil {
		delete(l.Items, line)
		return nil
	}
	if l.Items == nil {
		l.Items = make(map[int]Item)
	}
	l.Items[line] = item.copy()
	return nil
}

// Copy returns a deep copy of the song.
func (s *Song) Copy() *Song {
	c := *s
	c.Tracks = make([]Track, len(s.Tracks))
	for i := range s.Tracks {
		c.Tracks[i] = s.Tracks[i].Copy()
	}
	return &c
}

// Copy returns a deep copy of the track.
func (t Track) Copy() Track {
	c := t
	c.Modules = make([]Module, len(t.Modules))
	for i, m := range t.Modules {
		c.Modules[i] = m
		c.Modules[i].AudioInputs = append([]AudioInput(nil), m.AudioInputs...)
	}
	c.Lanes = make([]Lane, len(t.Lanes))
	for i, l := range t.Lanes {
		if l.Items == nil {
			continue
		}
		c.Lanes[i].Items = make(map[int]Item, len(l.Items))
		for line, item := range l.Items {
			c.Lanes[i].Items[line] = item.copy()
		}
	}
	c.AutomationParams = append([]AutomationParam(nil), t.AutomationParams...)
	return c
}

func (i Item) copy() Item {
	c := Item{Delay: i.Delay}
	if i.Note != nil {
		n := *i.Note
		c.Note = &n
	}
	if i.Point != nil {
		p := *i.Point
		c.Point = &p
	}
	return c
}
