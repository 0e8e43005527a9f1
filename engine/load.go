package engine

import (
	"fmt"

	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/song"
)

// Load opens plugin of every module in the song. Opened plugins are
// closed if any of them fails.
func Load(s *song.Song, r *plugin.Registry) (map[string]plugin.Plugin, error) {
	plugins := make(map[string]plugin.Plugin)
	for t, tr := range s.Tracks {
		for m, mod := range tr.Modules {
			p, err := r.Open(mod.Path, s.SampleRate)
			if err != nil {
				closeAll(plugins)
				return nil, fmt.Errorf("track %d module %d: %w", t, m, err)
			}
			plugins[mod.ID] = p
		}
	}
	return plugins, nil
}
