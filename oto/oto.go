// Package oto plays driver output with oto. Oto pulls bytes from a
// reader, so blocks are rendered on demand.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/signal"
)

const sampleSize = 4

// Processor renders interleaved blocks.
type Processor interface {
	Process(out []float32, numChannels int) error
}

// Reader renders blocks into float32 little endian samples.
type Reader struct {
	log.Logger
	m           sync.Mutex
	processor   Processor
	numChannels int
	block       []float32
	pending     []byte
	buf         []byte
	failed      bool
}

// NewReader returns reader that renders blocks of frames.
func NewReader(p Processor, numChannels, frames int, l log.Logger) *Reader {
	return &Reader{
		Logger:      l,
		processor:   p,
		numChannels: numChannels,
		block:       make([]float32, numChannels*frames),
		buf:         make([]byte, numChannels*frames*sampleSize),
	}
}

// Read implements io.Reader. Failed block is played as silence.
func (r *Reader) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			r.render()
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}

func (r *Reader) render() {
	if err := r.processor.Process(r.block, r.numChannels); err != nil {
		if !r.failed {
			r.Error(fmt.Sprintf("render failed: %v", err))
		}
		r.failed = true
		for i := range r.block {
			r.block[i] = 0
		}
	} else {
		r.failed = false
	}
	for i, v := range r.block {
		binary.LittleEndian.PutUint32(r.buf[i*sampleSize:], math.Float32bits(v))
	}
	r.pending = r.buf
}

// Player plays the reader with oto context.
type Player struct {
	player *oto.Player
}

// Open creates oto context and a player of the reader.
func Open(r *Reader, sampleRate int) (*Player, error) {
	frames := len(r.block) / r.numChannels
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: r.numChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   signal.DurationOf(sampleRate, int64(frames)) + 10*time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating oto context: %w", err)
	}
	<-ready
	return &Player{player: ctx.NewPlayer(r)}, nil
}

// Start starts playback.
func (p *Player) Start() error {
	p.player.Play()
	return p.player.Err()
}

// Close stops playback.
func (p *Player) Close() error {
	p.player.Pause()
	return p.player.Close()
}
