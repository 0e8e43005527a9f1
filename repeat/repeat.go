// Package repeat writes rendered blocks to multiple sinks at once.
package repeat

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dudk/sequencer"
)

// Sink consumes interleaved blocks.
type Sink interface {
	Write([]float32) error
	Close() error
}

// Repeater copies every block to its sinks. Each sink is written by its
// own goroutine, so slow encoder doesn't hold others. First sink error
// stops the repeater.
type Repeater struct {
	ctx   context.Context
	g     *errgroup.Group
	sinks []Sink
	lines []chan []float32
	pool  sync.Pool
}

// New starts goroutine for every sink. Buffer is the number of blocks
// queued per sink.
func New(ctx context.Context, buffer int, sinks ...Sink) *Repeater {
	g, ctx := errgroup.WithContext(ctx)
	r := Repeater{
		ctx:   ctx,
		g:     g,
		sinks: sinks,
		lines: make([]chan []float32, len(sinks)),
	}
	for i, s := range sinks {
		line := make(chan []float32, buffer)
		r.lines[i] = line
		g.Go(func() error {
			for b := range line {
				if err := s.Write(b); err != nil {
					return err
				}
				r.put(b)
			}
			return nil
		})
	}
	return &r
}

// Write sends copy of the block to every sink.
func (r *Repeater) Write(b []float32) error {
	for _, line := range r.lines {
		buf := r.get(len(b))
		copy(buf, b)
		select {
		case line <- buf:
		case <-r.ctx.Done():
			return context.Cause(r.ctx)
		}
	}
	return nil
}

// Close waits for sinks to write queued blocks and closes them.
func (r *Repeater) Close() error {
	for _, line := range r.lines {
		close(line)
	}
	var errs sequencer.Errors
	if err := r.g.Wait(); err != nil {
		errs = append(errs, err)
	}
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.Ret()
}

func (r *Repeater) get(size int) []float32 {
	if v := r.pool.Get(); v != nil {
		if b := *v.(*[]float32); cap(b) >= size {
			return b[:size]
		}
	}
	return make([]float32, size)
}

func (r *Repeater) put(b []float32) {
	r.pool.Put(&b)
}
