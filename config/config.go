// Package config holds sequencer settings stored as yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dudk/sequencer/plugin"
	"github.com/dudk/sequencer/render"
	"github.com/dudk/sequencer/song"
)

// Audio device backends.
const (
	PortAudio = "portaudio"
	Oto       = "oto"
)

// Config is sequencer settings.
type Config struct {
	SampleRate  int    `yaml:"sampleRate"`
	BufferSize  int    `yaml:"bufferSize"`
	NumChannels int    `yaml:"numChannels"`
	Backend     string `yaml:"backend"`
	// Workers limits tracks rendered concurrently.
	Workers           int      `yaml:"workers"`
	ContentionTimeout Duration `yaml:"contentionTimeout"`
	// MIDIInput is a prefix of the input port name. Empty disables input.
	MIDIInput   string   `yaml:"midiInput,omitempty"`
	MIDITrack   int      `yaml:"midiTrack,omitempty"`
	PluginPaths []string `yaml:"pluginPaths,omitempty"`
	Song        string   `yaml:"song,omitempty"`
}

// Duration is time.Duration stored as a string like "2ms".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns config with default settings.
func Default() *Config {
	return &Config{
		SampleRate:        song.DefaultSampleRate,
		BufferSize:        512,
		NumChannels:       2,
		Backend:           PortAudio,
		Workers:           runtime.GOMAXPROCS(0),
		ContentionTimeout: Duration(render.DefaultContentionTimeout),
	}
}

// Dir returns the config directory.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sequencer"), nil
}

// Path returns path of the default config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// Load reads the config file. Settings missing in the file keep default
// values. Missing file results in default config.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("error parsing config %v: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", path, err)
	}
	return c, nil
}

// Save writes the config file. Directory is created if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks settings.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate should be > 0: %d", c.SampleRate)
	case c.BufferSize < plugin.MinFrames || c.BufferSize > plugin.MaxFrames:
		return fmt.Errorf("buffer size should be in [%d, %d]: %d", plugin.MinFrames, plugin.MaxFrames, c.BufferSize)
	case c.NumChannels < 1:
		return fmt.Errorf("number of channels should be > 0: %d", c.NumChannels)
	case c.Backend != PortAudio && c.Backend != Oto:
		return fmt.Errorf("unknown backend %q", c.Backend)
	case c.Workers < 1:
		return fmt.Errorf("number of workers should be > 0: %d", c.Workers)
	case c.ContentionTimeout < 0:
		return fmt.Errorf("contention timeout should be >= 0: %v", time.Duration(c.ContentionTimeout))
	case c.MIDITrack < 0:
		return fmt.Errorf("midi track should be >= 0: %d", c.MIDITrack)
	}
	return nil
}
