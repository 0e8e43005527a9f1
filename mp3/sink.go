// Package mp3 encodes rendered blocks with lame.
package mp3

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/viert/lame"

	"github.com/dudk/sequencer/signal"
)

// Sink writes interleaved blocks into mp3 file.
type Sink struct {
	f    *os.File
	wr   *lame.LameWriter
	buf  bytes.Buffer
	ints []int
}

// NewSink creates the file and configures encoder.
func NewSink(path string, sampleRate, numChannels, bitRate, quality int) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := Sink{
		f:  f,
		wr: lame.NewWriter(f),
	}
	s.wr.Encoder.SetBitrate(bitRate)
	s.wr.Encoder.SetQuality(quality)
	s.wr.Encoder.SetNumChannels(numChannels)
	s.wr.Encoder.SetInSamplerate(sampleRate)
	if numChannels == 1 {
		s.wr.Encoder.SetMode(lame.MONO)
	} else {
		s.wr.Encoder.SetMode(lame.JOINT_STEREO)
	}
	s.wr.Encoder.SetVBR(lame.VBR_RH)
	s.wr.Encoder.InitParams()
	return &s, nil
}

// Write encodes interleaved block as 16 bit samples.
func (s *Sink) Write(b []float32) error {
	s.ints = signal.InterleavedAsInt(b, signal.BitDepth16, s.ints)
	s.buf.Reset()
	for _, v := range s.ints {
		if err := binary.Write(&s.buf, binary.LittleEndian, int16(v)); err != nil {
			return err
		}
	}
	_, err := s.wr.Write(s.buf.Bytes())
	return err
}

// Close flushes encoder and closes the file.
func (s *Sink) Close() error {
	if err := s.wr.Close(); err != nil {
		return err
	}
	return s.f.Close()
}
