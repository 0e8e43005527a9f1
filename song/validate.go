package song

import (
	"errors"
	"fmt"

	"github.com/dudk/sequencer"
)

// Validate checks song settings and every binding of the timeline. All
// binding failures are returned as *sequencer.BindingError.
func (s *Song) Validate() error {
	if s.BPM <= 0 {
		return errors.New("BPM should be > 0")
	}
	if s.SampleRate <= 0 {
		return errors.New("sample rate should be > 0")
	}
	if s.LPB <= 0 {
		return errors.New("LPB should be > 0")
	}
	for t := range s.Tracks {
		if err := s.ValidateTrack(t); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTrack checks bindings and items of a single track.
func (s *Song) ValidateTrack(t int) error {
	track := &s.Tracks[t]
	for m, module := range track.Modules {
		for _, in := range module.AudioInputs {
			if in.SrcTrack < 0 || in.SrcTrack >= len(s.Tracks) {
				return bindingError(t, m, "source track %d doesn't exist", in.SrcTrack)
			}
			if in.SrcModule < 0 || in.SrcModule >= len(s.Tracks[in.SrcTrack].Modules) {
				return bindingError(t, m, "source module %d doesn't exist in track %d", in.SrcModule, in.SrcTrack)
			}
			if in.SrcTrack == t && in.SrcModule >= m {
				return bindingError(t, m, "source module %d is not rendered before module %d", in.SrcModule, m)
			}
			if in.SrcPort < 0 || in.DstPort < 0 {
				return bindingError(t, m, "negative port")
			}
		}
	}
	for i, p := range track.AutomationParams {
		if p.Module < 0 || p.Module >= len(track.Modules) {
			return bindingError(t, -1, "automation %d targets module %d which doesn't exist", i, p.Module)
		}
	}
	for l, lane := range track.Lanes {
		for line, item := range lane.Items {
			if item.Note == nil && item.Point == nil {
				return fmt.Errorf("track %d lane %d line %d: empty item", t, l, line)
			}
			if item.Note != nil && item.Point != nil {
				return fmt.Errorf("track %d lane %d line %d: item is both note and point", t, l, line)
			}
			if item.Note != nil && item.Note.Key > 127 {
				return fmt.Errorf("track %d lane %d line %d: key %d out of range", t, l, line, item.Note.Key)
			}
			if item.Point != nil && (item.Point.Automation < 0 || item.Point.Automation >= len(track.AutomationParams)) {
				return bindingError(t, -1, "lane %d line %d uses automation %d which doesn't exist", l, line, item.Point.Automation)
			}
		}
	}
	return nil
}

func bindingError(track, module int, format string, args ...interface{}) error {
	return &sequencer.BindingError{
		Track:  track,
		Module: module,
		Reason: fmt.Sprintf(format, args...),
	}
}
