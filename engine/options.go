package engine

import (
	"fmt"
	"time"

	"github.com/dudk/sequencer/log"
)

// Option configures the driver.
type Option func(*Driver) error

// WithLogger sets driver logger.
func WithLogger(l log.Logger) Option {
	return func(d *Driver) error {
		d.Logger = l
		return nil
	}
}

// WithWorkers limits number of tracks rendered concurrently.
func WithWorkers(n int) Option {
	return func(d *Driver) error {
		if n < 1 {
			return fmt.Errorf("invalid number of workers: %d", n)
		}
		d.workers = n
		return nil
	}
}

// WithContentionTimeout limits how long track render waits for another
// track to read its audio.
func WithContentionTimeout(timeout time.Duration) Option {
	return func(d *Driver) error {
		if timeout < 0 {
			return fmt.Errorf("invalid contention timeout: %v", timeout)
		}
		d.contentionTimeout = timeout
		return nil
	}
}

// WithBlock preallocates buffers for the block size.
func WithBlock(numChannels, frames int) Option {
	return func(d *Driver) error {
		if numChannels < 1 || frames < 1 {
			return fmt.Errorf("invalid block: %d channels %d frames", numChannels, frames)
		}
		d.numChannels = numChannels
		d.frames = frames
		return nil
	}
}

// WithQueue sets capacity of command and notification channels.
func WithQueue(size int) Option {
	return func(d *Driver) error {
		if size < 1 {
			return fmt.Errorf("invalid queue size: %d", size)
		}
		d.queue = size
		return nil
	}
}
