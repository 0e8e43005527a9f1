package engine

import (
	"sort"

	"github.com/dudk/sequencer"
	"github.com/dudk/sequencer/song"
)

// Layers orders tracks so that every track renders after the tracks it
// reads audio from. Tracks of the same layer don't depend on each other
// and can render concurrently. Cross-track cycle is a binding error.
func Layers(s *song.Song) ([][]int, error) {
	n := len(s.Tracks)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for t, tr := range s.Tracks {
		sources := map[int]struct{}{}
		for m, mod := range tr.Modules {
			for _, in := range mod.AudioInputs {
				if in.SrcTrack < 0 || in.SrcTrack >= n {
					return nil, &sequencer.BindingError{
						Track:  t,
						Module: m,
						Reason: "audio input references missing track",
					}
				}
				if in.SrcTrack == t {
					continue
				}
				sources[in.SrcTrack] = struct{}{}
			}
		}
		for src := range sources {
			dependents[src] = append(dependents[src], t)
			indegree[t]++
		}
	}

	var (
		layers [][]int
		ready  []int
		done   int
	)
	for t := 0; t < n; t++ {
		if indegree[t] == 0 {
			ready = append(ready, t)
		}
	}
	for len(ready) > 0 {
		sort.Ints(ready)
		layers = append(layers, ready)
		done += len(ready)
		var next []int
		for _, t := range ready {
			for _, d := range dependents[t] {
				indegree[d]--
				if indegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		ready = next
	}
	if done < n {
		for t := 0; t < n; t++ {
			if indegree[t] > 0 {
				return nil, &sequencer.BindingError{
					Track:  t,
					Module: -1,
					Reason: "cross-track audio cycle",
				}
			}
		}
	}
	return layers, nil
}
