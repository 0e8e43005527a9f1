package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dudk/sequencer/engine"
	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/mp3"
	"github.com/dudk/sequencer/repeat"
	sequencersignal "github.com/dudk/sequencer/signal"
	"github.com/dudk/sequencer/song"
	"github.com/dudk/sequencer/wav"
)

type renderCommand struct {
	song     string
	out      stringList
	config   string
	loops    int
	lines    int
	bitDepth int
	bitRate  int
	quality  int
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render a song into wav or mp3 file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.song, "song", "", "song file to render (required)")
	fs.Var(&cmd.out, "out", "semicolon separated output files, .wav or .mp3 (required)")
	fs.StringVar(&cmd.config, "config", "", "config file")
	fs.IntVar(&cmd.loops, "loops", 1, "number of loop passes to render")
	fs.IntVar(&cmd.lines, "lines", 64, "number of lines to render if song has no loop")
	fs.IntVar(&cmd.bitDepth, "bitdepth", 16, "wav bit depth")
	fs.IntVar(&cmd.bitRate, "bitrate", 192, "mp3 bit rate")
	fs.IntVar(&cmd.quality, "quality", 2, "mp3 quality")
}

func (cmd *renderCommand) Validate() error {
	var message string
	if cmd.song == "" {
		message = message + "Missing -song required flag\n"
	}
	if len(cmd.out) == 0 {
		message = message + "Missing -out required flag\n"
	}
	if cmd.loops < 1 || cmd.lines < 1 {
		message = message + "Number of loops and lines should be > 0\n"
	}
	if message != "" {
		return errors.New(message)
	}
	return nil
}

func (cmd *renderCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	s, err := song.Load(cmd.song)
	if err != nil {
		return err
	}

	ticks := cmd.lines * song.TicksPerLine
	s.PlayPosition = song.Range{}
	if s.Loop.Enabled() {
		ticks = s.Loop.Len() * cmd.loops
		s.PlayPosition = song.Range{Start: s.Loop.Start, End: s.Loop.Start}
	}
	s.Playing = true
	blocks := engine.Blocks(ticks, cfg.BufferSize, s.SampleRate, s.BPM, s.LPB)

	l := log.GetLogger()
	d, err := newDriver(cfg, s, l)
	if err != nil {
		return err
	}
	defer d.Close()

	var sinks []repeat.Sink
	for _, path := range cmd.out {
		sink, err := cmd.sink(path, s.SampleRate, cfg.NumChannels)
		if err != nil {
			for _, sk := range sinks {
				sk.Close()
			}
			return err
		}
		sinks = append(sinks, sink)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	r := repeat.New(ctx, 4, sinks...)
	if err := d.Bounce(ctx, r, cfg.NumChannels, cfg.BufferSize, blocks); err != nil {
		r.Close()
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	fmt.Printf("Rendered %d blocks to %v\n", blocks, cmd.out.String())
	return nil
}

func (cmd *renderCommand) sink(path string, sampleRate, numChannels int) (repeat.Sink, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.NewSink(path, sampleRate, numChannels, cmd.bitRate, cmd.quality)
	case ".wav":
		return wav.NewSink(path, sampleRate, numChannels, sequencersignal.BitDepth(cmd.bitDepth))
	}
	return nil, fmt.Errorf("unsupported output format: %v", path)
}
