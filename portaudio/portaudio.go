// Package portaudio plays driver output with the default portaudio device.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/dudk/sequencer/log"
)

// Processor renders interleaved blocks.
type Processor interface {
	Process(out []float32, numChannels int) error
}

// Stream is a callback stream of the default output device. Device
// callback calls processor for every block.
type Stream struct {
	log.Logger
	processor   Processor
	stream      *portaudio.Stream
	numChannels int
	failed      bool
}

// Open initializes portaudio and opens the default output stream.
func Open(p Processor, sampleRate, numChannels, bufferSize int, l log.Logger) (*Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing portaudio: %w", err)
	}
	s := &Stream{
		Logger:      l,
		processor:   p,
		numChannels: numChannels,
	}
	stream, err := portaudio.OpenDefaultStream(0, numChannels, float64(sampleRate), bufferSize, s.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("error opening default stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// Device returns name of the default output device.
func Device() (string, error) {
	d, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// callback is called by portaudio with interleaved output buffer.
func (s *Stream) callback(out []float32) {
	err := s.processor.Process(out, s.numChannels)
	switch {
	case err != nil && !s.failed:
		s.failed = true
		s.Error(fmt.Sprintf("render failed: %v", err))
	case err == nil:
		s.failed = false
	}
}

// Start starts the stream.
func (s *Stream) Start() error {
	return s.stream.Start()
}

// Close stops the stream and terminates portaudio.
func (s *Stream) Close() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
