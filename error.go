package sequencer

import (
	"errors"
	"fmt"
)

var (
	// ErrPluginProcess is returned when a plugin signals failure of its
	// native process call.
	ErrPluginProcess = errors.New("plugin process failure")
	// ErrInvalidBinding is returned when automation or audio input binding
	// references a track, module or port that doesn't exist.
	ErrInvalidBinding = errors.New("invalid binding")
	// ErrCrossTrackContention is returned when the context of another track
	// cannot be read in time.
	ErrCrossTrackContention = errors.New("cross-track access contention")
)

// PluginError is returned if module processing failed during track render.
type PluginError struct {
	Track  int
	Module int
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("track %d module %d: %v: %v", e.Track, e.Module, ErrPluginProcess, e.Err)
}

// Is checks if error matches ErrPluginProcess.
func (e *PluginError) Is(err error) bool {
	return err == ErrPluginProcess
}

// Unwrap returns the plugin cause.
func (e *PluginError) Unwrap() error {
	return e.Err
}

// BindingError describes a binding that refers to missing data.
type BindingError struct {
	Track  int
	Module int
	Reason string
}

func (e *BindingError) Error() string {
	if e.Module < 0 {
		return fmt.Sprintf("track %d: %v: %s", e.Track, ErrInvalidBinding, e.Reason)
	}
	return fmt.Sprintf("track %d module %d: %v: %s", e.Track, e.Module, ErrInvalidBinding, e.Reason)
}

// Is checks if error matches ErrInvalidBinding.
func (e *BindingError) Is(err error) bool {
	return err == ErrInvalidBinding
}
