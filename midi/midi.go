// Package midi routes notes of a MIDI input device to the driver.
package midi

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/dudk/sequencer/engine"
	"github.com/dudk/sequencer/log"
)

// ErrNoPort is returned when no input port matches the name.
var ErrNoPort = errors.New("midi input port not found")

// Sender accepts driver commands without blocking.
type Sender interface {
	Send(engine.Command) bool
}

// Input forwards note messages as live notes of the selected track.
type Input struct {
	log.Logger
	sender Sender
	track  atomic.Int32
	in     drivers.In
	stop   func()
}

// NewInput returns input that sends notes to the track.
func NewInput(s Sender, track int, l log.Logger) *Input {
	i := Input{
		Logger: l,
		sender: s,
	}
	i.track.Store(int32(track))
	return &i
}

// Ports returns names of available input ports.
func Ports() []string {
	var names []string
	for _, in := range gomidi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// Open starts listening to the first port which name starts with prefix.
// Empty prefix takes the first port.
func (i *Input) Open(prefix string) error {
	for _, in := range gomidi.GetInPorts() {
		if !strings.HasPrefix(in.String(), prefix) {
			continue
		}
		stop, err := gomidi.ListenTo(in, i.Handle)
		if err != nil {
			return fmt.Errorf("open input %v: %w", in, err)
		}
		i.in, i.stop = in, stop
		i.Info(fmt.Sprintf("listening to midi input %v", in))
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNoPort, prefix)
}

// SetTrack changes the track receiving notes.
func (i *Input) SetTrack(track int) {
	i.track.Store(int32(track))
}

// Handle converts the message into driver command. Notes are dropped if
// the driver queue is full.
func (i *Input) Handle(msg gomidi.Message, timestampms int32) {
	cmd, ok := Command(msg, int(i.track.Load()))
	if !ok {
		return
	}
	if !i.sender.Send(cmd) {
		i.Warn(fmt.Sprintf("midi input dropped %v", msg))
	}
}

// Command returns live note command for the message. Note on with zero
// velocity is a note off.
func Command(msg gomidi.Message, track int) (engine.Command, bool) {
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		if velocity == 0 {
			return engine.NoteOff{Track: track, Key: key}, true
		}
		return engine.NoteOn{Track: track, Key: key, Velocity: velocity}, true
	case msg.GetNoteOff(&channel, &key, &velocity):
		return engine.NoteOff{Track: track, Key: key}, true
	}
	return nil, false
}

// Close stops listening and closes the port.
func (i *Input) Close() error {
	if i.stop != nil {
		i.stop()
		i.stop = nil
	}
	if i.in != nil && i.in.IsOpen() {
		return i.in.Close()
	}
	return nil
}
