package engine

import (
	"context"
	"fmt"
)

// Writer consumes interleaved blocks.
type Writer interface {
	Write([]float32) error
}

// Bounce renders number of blocks into the writer. It stops on the first
// render or write error, or when the context is done.
func (d *Driver) Bounce(ctx context.Context, w Writer, numChannels, frames, blocks int) error {
	out := make([]float32, numChannels*frames)
	for i := 0; i < blocks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := d.Process(out, numChannels); err != nil {
			return fmt.Errorf("error rendering block %d: %w", i, err)
		}
		if err := w.Write(out); err != nil {
			return fmt.Errorf("error writing block %d: %w", i, err)
		}
	}
	return nil
}
