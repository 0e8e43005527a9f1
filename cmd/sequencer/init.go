package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/dudk/sequencer/plugin/builtin"
	"github.com/dudk/sequencer/song"
)

type initCommand struct {
	out   string
	lines int
}

func (cmd *initCommand) Name() string {
	return "init"
}

func (cmd *initCommand) Help() string {
	return "Create a demo song with builtin plugins"
}

func (cmd *initCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.out, "out", "", "song file to create, json or yaml (required)")
	fs.IntVar(&cmd.lines, "lines", 16, "loop length in lines")
}

func (cmd *initCommand) Run() error {
	if cmd.out == "" {
		return errors.New("missing -out required flag")
	}
	if cmd.lines < 1 {
		return fmt.Errorf("invalid number of lines: %d", cmd.lines)
	}
	s := demo(cmd.lines)
	if err := s.Validate(); err != nil {
		return err
	}
	if err := s.Save(cmd.out); err != nil {
		return err
	}
	fmt.Printf("Song saved to %v\n", cmd.out)
	return nil
}

// demo returns a song with arpeggio played by sine synth through gain.
// Gain level is automated on the second lane.
func demo(lines int) *song.Song {
	s := song.New()
	s.Name = "demo"
	s.Loop = song.Range{Start: 0, End: lines * song.TicksPerLine}
	t := s.AddTrack()
	tr := &s.Tracks[t]
	tr.Modules = []song.Module{
		song.NewModule("sine", builtin.Prefix+"sine"),
		song.NewModule("gain", builtin.Prefix+"gain", song.AudioInput{SrcTrack: t, SrcModule: 0}),
	}
	tr.AutomationParams = []song.AutomationParam{{Module: 1, Param: builtin.GainLevel}}

	keys := []uint8{60, 64, 67, 72}
	for line := 0; line < lines; line++ {
		item := song.NoteItem(keys[line%len(keys)], 100)
		if line%4 == 3 {
			item = song.OffItem()
			item.Delay = 0x80
		}
		s.SetItem(t, 0, line, &item)
	}
	for line := 0; line < lines; line += 4 {
		item := song.PointItem(uint8(0x40+line*0x10%0x80), 0)
		s.SetItem(t, 1, line, &item)
	}
	return s
}
