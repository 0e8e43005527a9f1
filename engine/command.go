package engine

import (
	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/song"
)

// Command changes driver state. Commands are applied at the start of the
// next block, so the timeline never changes while the block renders.
type Command interface {
	command()
}

type (
	// Play starts the transport.
	Play struct{}

	// Stop stops the transport and releases held notes.
	Stop struct{}

	// Seek moves play position to the line and releases held notes.
	Seek struct {
		Line int
	}

	// SetSong replaces the song. Plugins are new instances keyed by
	// module ID, modules without entry keep their loaded instance.
	// Driver owns the passed plugins from now on.
	SetSong struct {
		Song    *song.Song
		Plugins map[string]plugin.Plugin
	}

	// SetItem puts the item into the track lane. Nil item clears the
	// slot.
	SetItem struct {
		Track int
		Lane  int
		Line  int
		Item  *song.Item
	}

	// NoteOn starts a live note on the track.
	NoteOn struct {
		Track    int
		Key      uint8
		Velocity uint8
	}

	// NoteOff releases a live note on the track.
	NoteOff struct {
		Track int
		Key   uint8
	}

	// AddTrack appends new empty track.
	AddTrack struct{}

	// AddModule appends module to the track. Plugin must be activated
	// and started. Driver owns it from now on.
	AddModule struct {
		Track  int
		Module song.Module
		Plugin plugin.Plugin
	}

	// SetLoop changes the loop range.
	SetLoop struct {
		Loop song.Range
	}

	// SetMixer changes track mixer state.
	SetMixer struct {
		Track  int
		Volume float32
		Pan    float32
		Mute   bool
		Solo   bool
	}
)

func (Play) command()      {}
func (Stop) command()      {}
func (Seek) command()      {}
func (SetSong) command()   {}
func (SetItem) command()   {}
func (NoteOn) command()    {}
func (NoteOff) command()   {}
func (AddTrack) command()  {}
func (AddModule) command() {}
func (SetLoop) command()   {}
func (SetMixer) command()  {}

// Notification is sent by the driver to observers.
type Notification interface {
	notification()
}

type (
	// LineChanged is sent when the play position enters new line.
	LineChanged struct {
		Line int
	}

	// SongChanged carries a copy of the song after edit.
	SongChanged struct {
		Song *song.Song
	}

	// RenderFailed is sent when block render failed. The transport is
	// stopped at this point.
	RenderFailed struct {
		Err error
	}

	// CommandFailed is sent when command could not be applied.
	CommandFailed struct {
		Command Command
		Err     error
	}
)

func (LineChanged) notification()   {}
func (SongChanged) notification()   {}
func (RenderFailed) notification()  {}
func (CommandFailed) notification() {}
