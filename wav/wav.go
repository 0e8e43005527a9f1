// Package wav writes bounced audio to wav files and reads samples for the
// sampler plugin.
package wav

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/sequencer/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")

// Sink saves interleaved audio to wav file.
type Sink struct {
	bitDepth    signal.BitDepth
	numChannels int
	file        *os.File
	encoder     *wav.Encoder
	ib          *audio.IntBuffer
}

// NewSink creates the file and writes wav header.
func NewSink(path string, sampleRate, numChannels int, bitDepth signal.BitDepth) (*Sink, error) {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth24 && bitDepth != signal.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		bitDepth:    bitDepth,
		numChannels: numChannels,
		file:        f,
		encoder:     wav.NewEncoder(f, sampleRate, int(bitDepth), numChannels, 1),
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write encodes interleaved samples.
func (s *Sink) Write(b []float32) error {
	s.ib.Data = signal.InterleavedAsInt(b, s.bitDepth, s.ib.Data)
	return s.encoder.Write(s.ib)
}

// Close flushes encoder and closes the file.
func (s *Sink) Close() error {
	err := s.encoder.Close()
	if err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Load reads the whole wav file into non-interleaved buffer.
func Load(path string) (signal.Float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("wav %v is not valid", path)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if bitDepth != signal.BitDepth8 && bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth24 && bitDepth != signal.BitDepth32 {
		return nil, 0, ErrUnsupportedBitDepth
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	b := signal.InterInt{
		Data:        ib.Data,
		NumChannels: ib.Format.NumChannels,
		BitDepth:    bitDepth,
	}.AsFloat32()
	return b, int(decoder.SampleRate), nil
}
