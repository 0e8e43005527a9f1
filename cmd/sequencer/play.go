package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/dudk/sequencer/config"
	"github.com/dudk/sequencer/engine"
	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/midi"
	"github.com/dudk/sequencer/oto"
	"github.com/dudk/sequencer/portaudio"
	"github.com/dudk/sequencer/song"
)

type playCommand struct {
	song    string
	config  string
	backend string
	midi    string
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play a song with audio device"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.song, "song", "", "song file to play (required)")
	fs.StringVar(&cmd.config, "config", "", "config file")
	fs.StringVar(&cmd.backend, "backend", "", "audio backend, portaudio or oto")
	fs.StringVar(&cmd.midi, "midi", "", "midi input port name prefix")
}

// output is an audio device stream.
type output interface {
	Start() error
	Close() error
}

func (cmd *playCommand) Run() error {
	if cmd.song == "" {
		return errors.New("missing -song required flag")
	}
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	if cmd.backend != "" {
		cfg.Backend = cmd.backend
	}
	if cmd.midi != "" {
		cfg.MIDIInput = cmd.midi
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s, err := song.Load(cmd.song)
	if err != nil {
		return err
	}
	s.SampleRate = cfg.SampleRate
	s.Playing = true

	l := log.GetLogger()
	d, err := newDriver(cfg, s, l)
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := open(cfg, d, l)
	if err != nil {
		return err
	}
	if cfg.MIDIInput != "" {
		in := midi.NewInput(d, cfg.MIDITrack, l)
		if err := in.Open(cfg.MIDIInput); err != nil {
			l.Warn(err)
		} else {
			defer in.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := out.Start(); err != nil {
		out.Close()
		return err
	}
	fmt.Printf("Playing %v, press Ctrl+C to stop\n", cmd.song)
	watch(ctx, d, l)
	return out.Close()
}

func open(cfg *config.Config, d *engine.Driver, l log.Logger) (output, error) {
	switch cfg.Backend {
	case config.Oto:
		r := oto.NewReader(d, cfg.NumChannels, cfg.BufferSize, l)
		return oto.Open(r, cfg.SampleRate)
	default:
		return portaudio.Open(d, cfg.SampleRate, cfg.NumChannels, cfg.BufferSize, l)
	}
}

// watch logs driver notifications until context is done.
func watch(ctx context.Context, d *engine.Driver, l log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.Notifications():
			switch n := n.(type) {
			case engine.LineChanged:
				l.Debug(fmt.Sprintf("line %04X", n.Line))
			case engine.RenderFailed:
				l.Error(n.Err)
			case engine.CommandFailed:
				l.Warn(fmt.Sprintf("command %T: %v", n.Command, n.Err))
			}
		}
	}
}
