package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/engine"
	"github.com/dudk/sequencer/song"
)

// reads returns song where every track has a single module reading first
// module of listed tracks.
func reads(sources ...[]int) *song.Song {
	s := song.New()
	for _, src := range sources {
		t := s.AddTrack()
		var inputs []song.AudioInput
		for _, st := range src {
			inputs = append(inputs, song.AudioInput{SrcTrack: st})
		}
		s.Tracks[t].Modules = []song.Module{song.NewModule("m", "mock", inputs...)}
	}
	return s
}

func TestLayers(t *testing.T) {
	tests := []struct {
		description string
		song        *song.Song
		expected    [][]int
		err         error
	}{
		{
			description: "empty",
			song:        song.New(),
		},
		{
			description: "chain",
			song:        reads(nil, []int{0}, []int{1}),
			expected:    [][]int{{0}, {1}, {2}},
		},
		{
			description: "fan in",
			song:        reads(nil, nil, []int{0, 1}),
			expected:    [][]int{{0, 1}, {2}},
		},
		{
			description: "independent after dependent",
			song:        reads([]int{2}, nil, nil),
			expected:    [][]int{{1, 2}, {0}},
		},
		{
			description: "self reads are ignored",
			song:        reads([]int{0}, []int{1}),
			expected:    [][]int{{0, 1}},
		},
		{
			description: "cycle",
			song:        reads([]int{1}, []int{0}, nil),
			err:         sequencer.ErrInvalidBinding,
		},
		{
			description: "missing track",
			song:        reads([]int{3}),
			err:         sequencer.ErrInvalidBinding,
		},
	}
	for _, c := range tests {
		layers, err := engine.Layers(c.song)
		if c.err != nil {
			assert.ErrorIs(t, err, c.err, c.description)
			continue
		}
		assert.NoError(t, err, c.description)
		assert.Equal(t, c.expected, layers, c.description)
	}
}
