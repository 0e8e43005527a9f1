//go:build portaudio

package portaudio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/portaudio"
)

type counter struct {
	blocks int
}

func (c *counter) Process(out []float32, numChannels int) error {
	c.blocks++
	for i := range out {
		out[i] = 0
	}
	return nil
}

func TestStream(t *testing.T) {
	c := &counter{}
	s, err := portaudio.Open(c, 48000, 2, 512, log.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Start())
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, s.Close())
	assert.NotZero(t, c.blocks)
}
